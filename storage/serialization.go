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

package storage

import (
	"fmt"

	"github.com/poiesic/lore/core"
)

// MarshalChunk serializes a ChunkRecord to bytes.
func MarshalChunk(record *core.ChunkRecord) []byte {
	buf := make([]byte, core.ChunkRecordMUS.Size(*record))
	core.ChunkRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalChunk deserializes a ChunkRecord from bytes.
func UnmarshalChunk(data []byte) (*core.ChunkRecord, error) {
	record, _, err := core.ChunkRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalDocument serializes a DocumentInfo to bytes.
func MarshalDocument(info *core.DocumentInfo) []byte {
	buf := make([]byte, core.DocumentInfoMUS.Size(*info))
	core.DocumentInfoMUS.Marshal(*info, buf)
	return buf
}

// UnmarshalDocument deserializes a DocumentInfo from bytes.
func UnmarshalDocument(data []byte) (*core.DocumentInfo, error) {
	info, _, err := core.DocumentInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: document: %w", ErrSerializationFailed, err)
	}
	return &info, nil
}
