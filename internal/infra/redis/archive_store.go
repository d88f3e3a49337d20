// Package redis provides Redis-backed persistence: score tables as sorted
// sets, result history as JSON lists, and a TTL cache in front of slow
// question-bank loaders.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/domain"
)

// ArchiveStore maps an archive snapshot onto Redis keys:
//
//	quiz:rooms                 SET    room ids with any state
//	quiz:board:{room}          ZSET   participant id -> cumulative score
//	quiz:names:{room}          HASH   participant id -> display name
//	quiz:seen:{room}           LIST   participant ids in first-seen order
//	quiz:history:{room}        LIST   history records as JSON
type ArchiveStore struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewArchiveStore(client *redis.Client, log zerolog.Logger) *ArchiveStore {
	return &ArchiveStore{client: client, log: log}
}

func roomsKey() string              { return "quiz:rooms" }
func boardKey(room string) string   { return "quiz:board:" + room }
func namesKey(room string) string   { return "quiz:names:" + room }
func seenKey(room string) string    { return "quiz:seen:" + room }
func historyKey(room string) string { return "quiz:history:" + room }

func (s *ArchiveStore) LoadAll(ctx context.Context) (archive.Snapshot, error) {
	snap := archive.Snapshot{
		Boards:  make(map[string][]domain.ScoreEntry),
		History: make(map[string][]domain.HistoryRecord),
	}

	rooms, err := s.client.SMembers(ctx, roomsKey()).Result()
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range rooms {
		entries, err := s.loadBoard(ctx, room)
		if err != nil {
			return archive.Snapshot{}, err
		}
		if len(entries) > 0 {
			snap.Boards[room] = entries
		}
		history, err := s.loadHistory(ctx, room)
		if err != nil {
			return archive.Snapshot{}, err
		}
		if len(history) > 0 {
			snap.History[room] = history
		}
	}
	return snap, nil
}

func (s *ArchiveStore) loadBoard(ctx context.Context, room string) ([]domain.ScoreEntry, error) {
	seen, err := s.client.LRange(ctx, seenKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load board order for %s: %w", room, err)
	}
	if len(seen) == 0 {
		return nil, nil
	}

	scored, err := s.client.ZRangeWithScores(ctx, boardKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load board scores for %s: %w", room, err)
	}
	scores := make(map[string]float64, len(scored))
	for _, z := range scored {
		if member, ok := z.Member.(string); ok {
			scores[member] = z.Score
		}
	}
	names, err := s.client.HGetAll(ctx, namesKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("load board names for %s: %w", room, err)
	}

	entries := make([]domain.ScoreEntry, 0, len(seen))
	for _, pid := range seen {
		entries = append(entries, domain.ScoreEntry{
			ParticipantID: pid,
			DisplayName:   names[pid],
			Score:         scores[pid],
		})
	}
	return entries, nil
}

func (s *ArchiveStore) loadHistory(ctx context.Context, room string) ([]domain.HistoryRecord, error) {
	raw, err := s.client.LRange(ctx, historyKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", room, err)
	}
	records := make([]domain.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var record domain.HistoryRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			s.log.Warn().Err(err).Str("room", room).Msg("dropping undecodable history record")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *ArchiveStore) SaveAll(ctx context.Context, snap archive.Snapshot) error {
	known, err := s.client.SMembers(ctx, roomsKey()).Result()
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, room := range known {
		pipe.Del(ctx, boardKey(room), namesKey(room), seenKey(room), historyKey(room))
	}
	pipe.Del(ctx, roomsKey())

	for room, entries := range snap.Boards {
		pipe.SAdd(ctx, roomsKey(), room)
		for _, e := range entries {
			pipe.ZAdd(ctx, boardKey(room), redis.Z{Score: e.Score, Member: e.ParticipantID})
			pipe.HSet(ctx, namesKey(room), e.ParticipantID, e.DisplayName)
			pipe.RPush(ctx, seenKey(room), e.ParticipantID)
		}
	}
	for room, records := range snap.History {
		pipe.SAdd(ctx, roomsKey(), room)
		for _, record := range records {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("encode history record: %w", err)
			}
			pipe.RPush(ctx, historyKey(room), data)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}
