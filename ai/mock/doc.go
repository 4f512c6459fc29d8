// Package mock provides in-process doubles for the ai interfaces.
//
// MockEmbedder returns unit-length bag-of-words vectors, so texts sharing
// words land close together in the index. MockGenerator answers with Reply,
// or streams Chunks (the words of Reply by default). Set Gate to hold each
// fragment until the test releases it, StartErr to fail stream start, and
// StreamErr to end a stream with an error fragment.
//
// Every double counts calls and keeps the last input:
//
//	gen := mock.NewMockGenerator("Glaciers retreated 2km.")
//	gen.StreamErr = core.ErrUpstreamTimeout
//	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), gen)
package mock
