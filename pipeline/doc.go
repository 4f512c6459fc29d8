// Package pipeline runs one conversational turn end to end.
//
// An Orchestrator checks the response cache, classifies the question,
// retrieves context (or the corpus inventory for listing questions),
// assembles a prompt, generates an answer, and only then records the turn in
// conversation memory and the cache. A failed turn leaves both untouched.
//
// Basic usage:
//
//	orch, err := pipeline.NewOrchestrator(gateway, generator,
//	    pipeline.WithCache(c),
//	    pipeline.WithInventory(chain),
//	)
//	resp, err := orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?"})
package pipeline
