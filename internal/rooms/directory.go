// Package rooms is the read-only room collaborator: the engine looks up
// rooms and their business hours here and never writes them.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"roomio/pkg/model"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("room not found")

const collectionName = "Rooms"

type Directory interface {
	Get(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context) ([]*model.Room, error)
}

type mongoDirectory struct {
	collection *mongo.Collection
}

func NewMongoDirectory(client *mongo.Client, database string) Directory {
	return &mongoDirectory{
		collection: client.Database(database).Collection(collectionName),
	}
}

func (d *mongoDirectory) Get(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := d.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

func (d *mongoDirectory) List(ctx context.Context) ([]*model.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := d.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

type memoryDirectory struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
}

func NewMemoryDirectory(rooms ...*model.Room) Directory {
	d := &memoryDirectory{rooms: make(map[string]*model.Room, len(rooms))}
	for _, room := range rooms {
		clone := *room
		d.rooms[room.ID] = &clone
	}
	return d
}

func (d *memoryDirectory) Get(ctx context.Context, id string) (*model.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, exists := d.rooms[id]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *room
	return &clone, nil
}

func (d *memoryDirectory) List(ctx context.Context) ([]*model.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]*model.Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		clone := *room
		rooms = append(rooms, &clone)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}
