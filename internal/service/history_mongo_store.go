package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twinlog/internal/analysis"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoHistoryCollection  = "history_items"
	mongoAnalysisCollection = "history_analyses"
	mongoConnectTimeout     = 30 * time.Second
)

type mongoHistoryEntry struct {
	UserID        int64     `bson:"user_id"`
	URL           string    `bson:"url"`
	Title         string    `bson:"title"`
	VisitCount    int       `bson:"visit_count"`
	LastVisitTime time.Time `bson:"last_visit_time"`
	Seq           int64     `bson:"seq"`
}

type mongoAnalysisDoc struct {
	UserID            int64     `bson:"user_id"`
	Analysis          string    `bson:"analysis"`
	AnalysisTimestamp time.Time `bson:"analysis_timestamp"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// MongoHistoryStore 在 MongoDB 中按 (user_id, url) 一条文档保存浏览记录，缓存报告单独成表。
type MongoHistoryStore struct {
	client   *mongo.Client
	items    *mongo.Collection
	analyses *mongo.Collection
	now      func() time.Time
}

var _ HistoryStore = (*MongoHistoryStore)(nil)

// NewMongoHistoryStore 连接 MongoDB 并确保所需索引存在。
func NewMongoHistoryStore(ctx context.Context, uri, database string) (*MongoHistoryStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	mdb := client.Database(database)
	store := &MongoHistoryStore{
		client:   client,
		items:    mdb.Collection(mongoHistoryCollection),
		analyses: mdb.Collection(mongoAnalysisCollection),
		now:      time.Now,
	}
	if err := store.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}
	return store, nil
}

func (s *MongoHistoryStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_visit_time", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "seq", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := s.analyses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Close 断开 MongoDB 连接。
func (s *MongoHistoryStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping 检查 MongoDB 是否可达。
func (s *MongoHistoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// ListEvents 按写入顺序返回全部记录。
func (s *MongoHistoryStore) ListEvents(ctx context.Context, userID uint) ([]analysis.VisitEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	events, err := s.findEvents(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return events, nil
}

// RecentEvents 返回最近访问的记录。
func (s *MongoHistoryStore) RecentEvents(ctx context.Context, userID uint, limit int) ([]analysis.VisitEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_visit_time", Value: -1}, {Key: "seq", Value: -1}}).
		SetLimit(int64(clampRecentLimit(limit)))
	events, err := s.findEvents(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	return events, nil
}

func (s *MongoHistoryStore) findEvents(ctx context.Context, userID uint, opts *options.FindOptions) ([]analysis.VisitEvent, error) {
	cursor, err := s.items.Find(ctx, bson.M{"user_id": int64(userID)}, opts)
	if err != nil {
		return nil, err
	}
	var entries []mongoHistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entriesToEvents(entries), nil
}

// SyncEvents 以逐条原子 upsert 合并记录，并发同步同一用户不会互相覆盖。
func (s *MongoHistoryStore) SyncEvents(ctx context.Context, userID uint, events []analysis.VisitEvent) (SyncResult, error) {
	now := s.now()
	result := SyncResult{Received: len(events)}
	merged, skipped := mergeEvents(events, now)
	result.Skipped = skipped
	if len(merged) == 0 {
		return result, nil
	}

	base := now.UnixNano()
	for start := 0; start < len(merged); start += syncLookupChunk {
		end := start + syncLookupChunk
		if end > len(merged) {
			end = len(merged)
		}
		models := make([]mongo.WriteModel, 0, end-start)
		for i := start; i < end; i++ {
			models = append(models, historyUpsertModel(userID, merged[i], base+int64(i), now))
		}

		res, err := s.items.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return SyncResult{Received: len(events)}, fmt.Errorf("save history: %w", err)
		}
		result.Inserted += int(res.UpsertedCount)
		result.Updated += int(res.MatchedCount)
	}
	return result, nil
}

// historyUpsertModel 构造单条记录的 upsert：访问次数与时间取较大值，默认标题不覆盖已有标题。
func historyUpsertModel(userID uint, event analysis.VisitEvent, seq int64, now time.Time) *mongo.UpdateOneModel {
	set := bson.M{"updated_at": now.UTC()}
	setOnInsert := bson.M{"seq": seq, "created_at": now.UTC()}
	if event.Title != "" && event.Title != analysis.DefaultTitle {
		set["title"] = event.Title
	} else {
		setOnInsert["title"] = analysis.DefaultTitle
	}

	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"user_id": int64(userID), "url": event.URL}).
		SetUpdate(bson.M{
			"$max": bson.M{
				"visit_count":     event.VisitCount,
				"last_visit_time": event.LastVisitTime.UTC(),
			},
			"$set":         set,
			"$setOnInsert": setOnInsert,
		}).
		SetUpsert(true)
}

// DeleteAll 清空记录并移除缓存报告。
func (s *MongoHistoryStore) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	filter := bson.M{"user_id": int64(userID)}
	res, err := s.items.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	if _, err := s.analyses.DeleteOne(ctx, filter); err != nil {
		return 0, fmt.Errorf("delete analysis: %w", err)
	}
	return res.DeletedCount, nil
}

// LoadAnalysis 读取缓存报告。
func (s *MongoHistoryStore) LoadAnalysis(ctx context.Context, userID uint) (*CachedAnalysis, error) {
	var doc mongoAnalysisDoc
	err := s.analyses.FindOne(ctx, bson.M{"user_id": int64(userID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}

	var report analysis.Report
	if err := json.Unmarshal([]byte(doc.Analysis), &report); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &CachedAnalysis{Report: report, Timestamp: doc.AnalysisTimestamp.UTC()}, nil
}

// SaveAnalysis 覆盖写入缓存报告。
func (s *MongoHistoryStore) SaveAnalysis(ctx context.Context, userID uint, report analysis.Report, ts time.Time) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	_, err = s.analyses.UpdateOne(ctx,
		bson.M{"user_id": int64(userID)},
		bson.M{"$set": bson.M{
			"analysis":           string(payload),
			"analysis_timestamp": ts.UTC(),
			"updated_at":         s.now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func entriesToEvents(entries []mongoHistoryEntry) []analysis.VisitEvent {
	events := make([]analysis.VisitEvent, 0, len(entries))
	for _, entry := range entries {
		events = append(events, analysis.VisitEvent{
			URL:           entry.URL,
			Title:         entry.Title,
			VisitCount:    entry.VisitCount,
			LastVisitTime: entry.LastVisitTime.UTC(),
		})
	}
	return events
}
