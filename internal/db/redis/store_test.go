package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/vecmatch/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		wantErr bool
	}{
		{"pong", mock.Result(mock.RedisString("PONG")), false},
		{"timeout", mock.ErrorResult(context.DeadlineExceeded), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(tt.result)

			err := s.Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("LOADING"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		MinTimes(1)

	err := s.WaitForReady(context.Background(), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error without addresses")
	}
}

func TestPutIndexed(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HSET", "emb:1", "vector", "abc"),
			mock.Match("SADD", "idx", "v-1"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	err := s.PutIndexed(context.Background(), "emb:1", map[string]string{"vector": "abc"}, "idx", "v-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPutIndexed_IndexError(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.ErrorResult(errors.New("OOM command not allowed")),
		})

	err := s.PutIndexed(context.Background(), "emb:1", map[string]string{"f": "v"}, "idx", "v-1")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if dbErr.Op != db.OpPutIndexed || dbErr.Key != "emb:1" {
		t.Errorf("unexpected error context: %+v", dbErr)
	}
}

func TestDeleteIndexed(t *testing.T) {
	tests := []struct {
		name    string
		results []rueidis.RedisResult
		want    int
		wantErr bool
	}{
		{
			name: "counts existing keys only",
			results: []rueidis.RedisResult{
				mock.Result(mock.RedisInt64(1)),
				mock.Result(mock.RedisInt64(0)),
				mock.Result(mock.RedisInt64(1)),
			},
			want: 1,
		},
		{
			name: "nothing stored",
			results: []rueidis.RedisResult{
				mock.Result(mock.RedisInt64(0)),
				mock.Result(mock.RedisInt64(0)),
				mock.Result(mock.RedisInt64(0)),
			},
			want: 0,
		},
		{
			name: "driver error",
			results: []rueidis.RedisResult{
				mock.ErrorResult(context.DeadlineExceeded),
				mock.Result(mock.RedisInt64(0)),
				mock.Result(mock.RedisInt64(0)),
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().
				DoMulti(gomock.Any(),
					mock.Match("DEL", "k1"),
					mock.Match("DEL", "k2"),
					mock.Match("SREM", "idx", "v-1"),
				).
				Return(tt.results)

			n, err := s.DeleteIndexed(context.Background(), []string{"k1", "k2"}, "idx", "v-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteIndexed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && n != tt.want {
				t.Errorf("deleted = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestHGetAll(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "emb:1")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"entity_id": mock.RedisString("v-1"),
			"category":  mock.RedisString("skills"),
		})))

	m, err := s.HGetAll(context.Background(), "emb:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["entity_id"] != "v-1" || m["category"] != "skills" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAllMulti(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("HGETALL", "k1"), mock.Match("HGETALL", "k2")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"f": mock.RedisString("a")})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
		})

	rows, err := s.HGetAllMulti(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0]["f"] != "a" || len(rows[1]) != 0 {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestHGetAllMulti_Empty(t *testing.T) {
	s, _ := newMockStore(t)
	rows, err := s.HGetAllMulti(context.Background(), nil)
	if err != nil || rows != nil {
		t.Fatalf("expected nil, nil; got %v, %v", rows, err)
	}
}

func TestHGetAllMulti_Error(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	_, err := s.HGetAllMulti(context.Background(), []string{"k1", "k2"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Key != "k2" {
		t.Fatalf("expected db.Error for k2, got %v", err)
	}
}

func TestSMembers(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SMEMBERS", "idx")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("v-1"), mock.RedisString("v-2"))))

	members, err := s.SMembers(context.Background(), "idx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 || members[0] != "v-1" || members[1] != "v-2" {
		t.Errorf("unexpected members: %v", members)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		result  rueidis.RedisResult
		want    string
		wantErr error
	}{
		{"hit", mock.Result(mock.RedisBlobString("value")), "value", nil},
		{"miss", mock.Result(mock.RedisNil()), "", db.ErrKeyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("GET", "cache:1")).Return(tt.result)

			data, err := s.Get(context.Background(), "cache:1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if string(data) != tt.want {
				t.Errorf("Get() = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestGet_DriverError(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "cache:1")).Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := s.Get(context.Background(), "cache:1")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestSetWithTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		cmd  []string
	}{
		{"with expiry", time.Minute, []string{"SET", "cache:1", "v", "EX", "60"}},
		{"no expiry", 0, []string{"SET", "cache:1", "v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match(tt.cmd...)).Return(mock.Result(mock.RedisString("OK")))

			if err := s.SetWithTTL(context.Background(), "cache:1", []byte("v"), tt.ttl); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
