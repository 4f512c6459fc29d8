// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrCorruptRecord indicates a binary record with an impossible length prefix.
var ErrCorruptRecord = errors.New("corrupt record")

// MUS serializers for records persisted by the index and the cache.
var (
	ChunkRecordMUS   = chunkRecordMUS{}
	DocumentInfoMUS  = documentInfoMUS{}
	ChatResponseMUS  = chatResponseMUS{}
	IngestResultMUS  = ingestResultMUS{}
	sourceSummarySer = sourceSummaryMUS{}
)

type unmarshaler[T any] interface {
	Unmarshal(bs []byte) (T, int, error)
}

// read decodes one field at bs[*n:] into dst and advances *n.
func read[T any](ser unmarshaler[T], bs []byte, n *int, dst *T) error {
	v, m, err := ser.Unmarshal(bs[*n:])
	*n += m
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readLen(bs []byte, n *int) (int, error) {
	var l int64
	if err := read[int64](varint.Int64, bs, n, &l); err != nil {
		return 0, err
	}
	if l < 0 || l > int64(len(bs)) {
		return 0, ErrCorruptRecord
	}
	return int(l), nil
}

func timeSize(t time.Time) int { return varint.Int64.Size(t.UnixMicro()) }

func putTime(t time.Time, bs []byte) int { return varint.Int64.Marshal(t.UnixMicro(), bs) }

func readTime(bs []byte, n *int, dst *time.Time) error {
	var us int64
	if err := read[int64](varint.Int64, bs, n, &us); err != nil {
		return err
	}
	*dst = time.UnixMicro(us).UTC()
	return nil
}

func readInt(bs []byte, n *int, dst *int) error {
	var v int64
	if err := read[int64](varint.Int64, bs, n, &v); err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

func readID(bs []byte, n *int, dst *ID) error {
	var v uint64
	if err := read[uint64](varint.Uint64, bs, n, &v); err != nil {
		return err
	}
	*dst = ID(v)
	return nil
}

// chunkRecordMUS encodes ChunkRecord. Vector components are stored as IEEE-754 bits.
type chunkRecordMUS struct{}

func (chunkRecordMUS) Marshal(v ChunkRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.Id), bs)
	n += varint.Uint64.Marshal(uint64(v.SourceID), bs[n:])
	n += varint.Int64.Marshal(int64(v.Position), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int64.Marshal(int64(len(v.Vector)), bs[n:])
	for _, f := range v.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func (chunkRecordMUS) Unmarshal(bs []byte) (v ChunkRecord, n int, err error) {
	if err = readID(bs, &n, &v.Id); err != nil {
		return
	}
	if err = readID(bs, &n, &v.SourceID); err != nil {
		return
	}
	if err = readInt(bs, &n, &v.Position); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Content); err != nil {
		return
	}
	l, err := readLen(bs, &n)
	if err != nil {
		return
	}
	if l > 0 {
		v.Vector = make([]float32, l)
	}
	for i := 0; i < l; i++ {
		var bits uint32
		if err = read[uint32](varint.Uint32, bs, &n, &bits); err != nil {
			return
		}
		v.Vector[i] = math.Float32frombits(bits)
	}
	return
}

func (chunkRecordMUS) Size(v ChunkRecord) (size int) {
	size = varint.Uint64.Size(uint64(v.Id))
	size += varint.Uint64.Size(uint64(v.SourceID))
	size += varint.Int64.Size(int64(v.Position))
	size += ord.String.Size(v.Content)
	size += varint.Int64.Size(int64(len(v.Vector)))
	for _, f := range v.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

type documentInfoMUS struct{}

func (documentInfoMUS) Marshal(v DocumentInfo, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.SourceID), bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.URL, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += varint.Int64.Marshal(int64(v.Chunks), bs[n:])
	n += putTime(v.IngestedAt, bs[n:])
	return n
}

func (documentInfoMUS) Unmarshal(bs []byte) (v DocumentInfo, n int, err error) {
	if err = readID(bs, &n, &v.SourceID); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Title); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.URL); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Category); err != nil {
		return
	}
	if err = readInt(bs, &n, &v.Chunks); err != nil {
		return
	}
	err = readTime(bs, &n, &v.IngestedAt)
	return
}

func (documentInfoMUS) Size(v DocumentInfo) (size int) {
	size = varint.Uint64.Size(uint64(v.SourceID))
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.URL)
	size += ord.String.Size(v.Category)
	size += varint.Int64.Size(int64(v.Chunks))
	return size + timeSize(v.IngestedAt)
}

type sourceSummaryMUS struct{}

func (sourceSummaryMUS) Marshal(v SourceSummary, bs []byte) (n int) {
	n = ord.String.Marshal(v.Title, bs)
	n += ord.String.Marshal(v.URL, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.Excerpt, bs[n:])
	n += varint.Uint64.Marshal(math.Float64bits(v.Relevance), bs[n:])
	return n
}

func (sourceSummaryMUS) Unmarshal(bs []byte) (v SourceSummary, n int, err error) {
	if err = read[string](ord.String, bs, &n, &v.Title); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.URL); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Category); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Excerpt); err != nil {
		return
	}
	var bits uint64
	if err = read[uint64](varint.Uint64, bs, &n, &bits); err != nil {
		return
	}
	v.Relevance = math.Float64frombits(bits)
	return
}

func (sourceSummaryMUS) Size(v SourceSummary) (size int) {
	size = ord.String.Size(v.Title)
	size += ord.String.Size(v.URL)
	size += ord.String.Size(v.Category)
	size += ord.String.Size(v.Excerpt)
	return size + varint.Uint64.Size(math.Float64bits(v.Relevance))
}

// chatResponseMUS encodes ChatResponse. Cached is not stored; a decoded
// response always comes from the cache.
type chatResponseMUS struct{}

func (chatResponseMUS) Marshal(v ChatResponse, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Message, bs[n:])
	n += ord.String.Marshal(v.ConversationID, bs[n:])
	n += varint.Int64.Marshal(int64(v.TokensUsed), bs[n:])
	n += varint.Int64.Marshal(v.ProcessingTimeMs, bs[n:])
	n += ord.String.Marshal(v.Model, bs[n:])
	n += putTime(v.CreatedAt, bs[n:])
	n += varint.Int64.Marshal(int64(len(v.Sources)), bs[n:])
	for _, s := range v.Sources {
		n += sourceSummarySer.Marshal(s, bs[n:])
	}
	return n
}

func (chatResponseMUS) Unmarshal(bs []byte) (v ChatResponse, n int, err error) {
	if err = read[string](ord.String, bs, &n, &v.ID); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Message); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.ConversationID); err != nil {
		return
	}
	if err = readInt(bs, &n, &v.TokensUsed); err != nil {
		return
	}
	if err = read[int64](varint.Int64, bs, &n, &v.ProcessingTimeMs); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Model); err != nil {
		return
	}
	if err = readTime(bs, &n, &v.CreatedAt); err != nil {
		return
	}
	l, err := readLen(bs, &n)
	if err != nil {
		return
	}
	v.Sources = make([]SourceSummary, 0, l)
	for i := 0; i < l; i++ {
		var s SourceSummary
		if err = read[SourceSummary](sourceSummarySer, bs, &n, &s); err != nil {
			return
		}
		v.Sources = append(v.Sources, s)
	}
	return
}

func (chatResponseMUS) Size(v ChatResponse) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Message)
	size += ord.String.Size(v.ConversationID)
	size += varint.Int64.Size(int64(v.TokensUsed))
	size += varint.Int64.Size(v.ProcessingTimeMs)
	size += ord.String.Size(v.Model)
	size += timeSize(v.CreatedAt)
	size += varint.Int64.Size(int64(len(v.Sources)))
	for _, s := range v.Sources {
		size += sourceSummarySer.Size(s)
	}
	return size
}

type ingestResultMUS struct{}

func (ingestResultMUS) Marshal(v IngestResult, bs []byte) (n int) {
	n = ord.String.Marshal(v.URL, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += varint.Int64.Marshal(int64(v.Chunks), bs[n:])
	n += varint.Int64.Marshal(int64(len(v.DocumentIDs)), bs[n:])
	for _, id := range v.DocumentIDs {
		n += ord.String.Marshal(id, bs[n:])
	}
	return n
}

func (ingestResultMUS) Unmarshal(bs []byte) (v IngestResult, n int, err error) {
	if err = read[string](ord.String, bs, &n, &v.URL); err != nil {
		return
	}
	if err = read[string](ord.String, bs, &n, &v.Title); err != nil {
		return
	}
	if err = readInt(bs, &n, &v.Chunks); err != nil {
		return
	}
	l, err := readLen(bs, &n)
	if err != nil {
		return
	}
	v.DocumentIDs = make([]string, 0, l)
	for i := 0; i < l; i++ {
		var id string
		if err = read[string](ord.String, bs, &n, &id); err != nil {
			return
		}
		v.DocumentIDs = append(v.DocumentIDs, id)
	}
	return
}

func (ingestResultMUS) Size(v IngestResult) (size int) {
	size = ord.String.Size(v.URL)
	size += ord.String.Size(v.Title)
	size += varint.Int64.Size(int64(v.Chunks))
	size += varint.Int64.Size(int64(len(v.DocumentIDs)))
	for _, id := range v.DocumentIDs {
		size += ord.String.Size(id)
	}
	return size
}
