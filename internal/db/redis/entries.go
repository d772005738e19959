package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmatch/internal/db"
)

// PutIndexed pipelines HSET and SADD. The pair is not transactional: a failed SADD
// leaves an entry that ListAll does not see until the next successful write.
func (s *Store) PutIndexed(
	ctx context.Context, key string, fields map[string]string, index, member string,
) error {
	hset := s.client.B().Hset().Key(key).FieldValue()
	for k, v := range fields {
		hset = hset.FieldValue(k, v)
	}
	cmds := rueidis.Commands{
		hset.Build(),
		s.client.B().Sadd().Key(index).Member(member).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpPutIndexed, Key: key, Err: err}
		}
	}
	return nil
}

// DeleteIndexed issues one DEL per key so that keys in different cluster slots
// are routed independently, then SREM, all in a single pipeline.
func (s *Store) DeleteIndexed(ctx context.Context, keys []string, index, member string) (int, error) {
	cmds := make(rueidis.Commands, 0, len(keys)+1)
	for _, k := range keys {
		cmds = append(cmds, s.client.B().Del().Key(k).Build())
	}
	cmds = append(cmds, s.client.B().Srem().Key(index).Member(member).Build())

	deleted := 0
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		n, err := res.AsInt64()
		if err != nil {
			return deleted, &db.Error{Op: db.OpDeleteIndexed, Key: index, Err: err}
		}
		if i < len(keys) {
			deleted += int(n)
		}
	}
	return deleted, nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.Do(ctx, s.client.B().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Key: key, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches many hashes in one pipeline. The result is index-aligned with keys.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Key: keys[i], Err: err}
		}
		out[i] = m
	}
	return out, nil
}

// SMembers returns the members of an index set. A missing key yields an empty slice.
func (s *Store) SMembers(ctx context.Context, index string) ([]string, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(index).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Key: index, Err: err}
	}
	return members, nil
}
