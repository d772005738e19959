package embedding

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

const (
	fieldEntityID   = "entity_id"
	fieldEntityType = "entity_type"
	fieldCategory   = "category"
	fieldVector     = "vector"
	fieldMetadata   = "metadata"
	fieldCreatedAt  = "created_at"
)

// buildHashFields converts a CategoryEmbedding into a flat map[string]string for HSET.
func buildHashFields(e *domain.CategoryEmbedding) (map[string]string, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return map[string]string{
		fieldEntityID:   e.EntityID,
		fieldEntityType: string(e.EntityType),
		fieldCategory:   e.Category.String(),
		fieldVector:     vectorToBytes(e.Vector),
		fieldMetadata:   string(metaJSON),
		fieldCreatedAt:  strconv.FormatInt(e.CreatedAt.UnixMilli(), 10),
	}, nil
}

// parseHashFields converts a flat hash map back into a CategoryEmbedding.
func parseHashFields(m map[string]string) (domain.CategoryEmbedding, error) {
	cat, err := domain.ParseCategory(m[fieldCategory])
	if err != nil {
		return domain.CategoryEmbedding{}, fmt.Errorf("stored category: %w", err)
	}
	vec, err := bytesToVector(m[fieldVector])
	if err != nil {
		return domain.CategoryEmbedding{}, err
	}

	meta := map[string]string{}
	if raw := m[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return domain.CategoryEmbedding{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	var createdAt time.Time
	if ms, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil {
		createdAt = time.UnixMilli(ms).UTC()
	}

	return domain.CategoryEmbedding{
		EntityID:   m[fieldEntityID],
		EntityType: domain.EntityType(m[fieldEntityType]),
		Category:   cat,
		Vector:     vec,
		Metadata:   meta,
		CreatedAt:  createdAt,
	}, nil
}

// vectorToBytes serializes a vector to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v domain.Vector) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to a vector.
func bytesToVector(s string) (domain.Vector, error) {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid stored vector: len=%d (not multiple of 4)", len(b))
	}
	v := make(domain.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
