// Package mongo stores the question bank in a MongoDB collection, as an
// alternative to the Postgres backend.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trivia-session-service/internal/domain"
)

const collectionName = "questions"

type questionDoc struct {
	ID           int64    `bson:"_id"`
	Topic        string   `bson:"topic"`
	Text         string   `bson:"text"`
	Options      []string `bson:"options"`
	CorrectIndex int      `bson:"correctIndex"`
	Explanation  string   `bson:"explanation"`
}

// Bank implements bank.Loader and bank.Writer over a Mongo collection.
type Bank struct {
	coll *mongo.Collection
}

func NewBank(db *mongo.Database) *Bank {
	return &Bank{coll: db.Collection(collectionName)}
}

func (b *Bank) LoadAll(ctx context.Context) ([]domain.Question, error) {
	cursor, err := b.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []domain.Question
	for cursor.Next(ctx) {
		var doc questionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		questions = append(questions, domain.Question{
			ID:           doc.ID,
			Topic:        doc.Topic,
			Text:         doc.Text,
			Options:      doc.Options,
			CorrectIndex: doc.CorrectIndex,
			Explanation:  doc.Explanation,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (b *Bank) SaveAll(ctx context.Context, questions []domain.Question) error {
	if _, err := b.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	if len(questions) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(questions))
	for _, q := range questions {
		docs = append(docs, questionDoc{
			ID:           q.ID,
			Topic:        q.Topic,
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}
	if _, err := b.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}
