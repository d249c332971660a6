package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/haanhng/caro-client-go/pkg/carodto"
)

const (
	keyGuestToken = "caro:guest:token"
	keyGuestName  = "caro:guest:name"
)

// Store persists the device-scoped local state: the durable guest token,
// the guest display name, and a capped ring of recent results.
type Store struct {
	rdb        *redis.Client
	resultsCap int
}

func NewStore(redisURL string, resultsCap int) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for identity store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if resultsCap <= 0 {
		resultsCap = 20
	}
	return &Store{rdb: rdb, resultsCap: resultsCap}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// GuestToken returns the persisted guest token, creating it on first need.
// A valid token is never regenerated.
func (s *Store) GuestToken(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, keyGuestToken).Result()
	if err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if err != nil && err != redis.Nil {
		return "", err
	}
	token := "g-" + uuid.NewString()
	if err := s.rdb.Set(ctx, keyGuestToken, token, 0).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) GuestName(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, keyGuestName).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) SetGuestName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty guest name")
	}
	return s.rdb.Set(ctx, keyGuestName, name, 0).Err()
}

func keyResults(ident string) string { return "caro:results:" + strings.TrimSpace(ident) }

// PushResult prepends a result to the ring for ident and trims to the cap,
// evicting the oldest entries.
func (s *Store) PushResult(ctx context.Context, ident string, rec *carodto.ResultRecord) error {
	if strings.TrimSpace(ident) == "" || rec == nil {
		return fmt.Errorf("invalid result push")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := keyResults(ident)
	if err := s.rdb.LPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	return s.rdb.LTrim(ctx, key, 0, int64(s.resultsCap-1)).Err()
}

// RecentResults returns the ring newest-first.
func (s *Store) RecentResults(ctx context.Context, ident string) ([]carodto.ResultRecord, error) {
	rows, err := s.rdb.LRange(ctx, keyResults(ident), 0, int64(s.resultsCap-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]carodto.ResultRecord, 0, len(rows))
	for _, row := range rows {
		var rec carodto.ResultRecord
		if jerr := json.Unmarshal([]byte(row), &rec); jerr != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
