package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"git.fiblab.net/sim/streetcover/planner"
)

// MongoDB后端，路段按bson文档存于{db}.{col}
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, db, coll string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(coll),
	}, nil
}

func (s *MongoStore) LoadSegments(ctx context.Context) ([]*planner.StreetSegment, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find segments: %w", err)
	}
	defer cur.Close(ctx)
	segs := make([]*planner.StreetSegment, 0)
	for cur.Next(ctx) {
		var seg planner.StreetSegment
		if err := cur.Decode(&seg); err != nil {
			log.Warnf("skip undecodable segment: %v", err)
			continue
		}
		segs = append(segs, &seg)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return segs, nil
}

func (s *MongoStore) SaveSegments(ctx context.Context, segs []*planner.StreetSegment) error {
	if err := s.coll.Drop(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if len(segs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(segs))
	for _, seg := range segs {
		docs = append(docs, seg)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert segments: %w", err)
	}
	log.Infof("saved %d segments to %s", len(segs), s.coll.Name())
	return nil
}

func (s *MongoStore) SetCompleted(ctx context.Context, streetID string, completed bool) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "id", Value: streetID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "completed", Value: completed}}}},
	)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStreetNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
