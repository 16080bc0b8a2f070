package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/paging"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageCollection is the collection holding archived messages.
const MessageCollection = "messages"

// MessageAdapter implements out.MessageStore on a MongoDB collection.
type MessageAdapter struct {
	coll     *mongo.Collection
	pageSize int
}

var _ out.MessageStore = (*MessageAdapter)(nil)

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(db *mongo.Database) *MessageAdapter {
	return &MessageAdapter{coll: db.Collection(MessageCollection), pageSize: out.DefaultPageSize}
}

// Collection exposes the underlying collection for index management.
func (a *MessageAdapter) Collection() *mongo.Collection {
	return a.coll
}

// messageFields maps predicate fields to document fields.
var messageFields = map[domain.Field]string{
	domain.FieldID:         "message_id",
	domain.FieldProvider:   "provider",
	domain.FieldSender:     "sender",
	domain.FieldRecipients: "recipients",
	domain.FieldCreatedAt:  "created_at",
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "message_id", Value: -1}}

// QueryByPredicate pages through the user's messages until maxItems match.
func (a *MessageAdapter) QueryByPredicate(ctx context.Context, userKey string, predicate domain.Predicate, maxItems int) ([]*domain.Message, error) {
	cond, err := compileFilter(predicate)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, token string, limit int) (paging.Page[*domain.Message], error) {
		cursor, err := paging.DecodeCursor(token)
		if err != nil {
			return paging.Page[*domain.Message]{}, err
		}

		opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
		cur, err := a.coll.Find(ctx, pageFilter(userKey, cond, cursor), opts)
		if err != nil {
			return paging.Page[*domain.Message]{}, fmt.Errorf("find messages: %w", err)
		}
		var items []*domain.Message
		if err := cur.All(ctx, &items); err != nil {
			return paging.Page[*domain.Message]{}, fmt.Errorf("decode messages: %w", err)
		}
		return paging.Page[*domain.Message]{Items: items, Next: paging.NextCursor(items, limit, messageCursor)}, nil
	}

	return paging.Collect(ctx, fetch, a.pageSize, maxItems)
}

// GetByID gets a single message from the user's partition.
func (a *MessageAdapter) GetByID(ctx context.Context, userKey, id string) (*domain.Message, error) {
	var m domain.Message
	err := a.coll.FindOne(ctx, bson.M{"user_key": userKey, "message_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

func messageCursor(m *domain.Message) paging.Cursor {
	return paging.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// pageFilter scopes cond to the partition and positions it after cursor.
func pageFilter(userKey string, cond bson.M, cursor *paging.Cursor) bson.M {
	clauses := bson.A{bson.M{"user_key": userKey}}
	if cond != nil {
		clauses = append(clauses, cond)
	}
	if cursor != nil {
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"created_at": bson.M{"$lt": cursor.CreatedAt}},
			bson.M{"created_at": cursor.CreatedAt, "message_id": bson.M{"$lt": cursor.ID}},
		}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.M)
	}
	return bson.M{"$and": clauses}
}

// compileFilter renders p as a query document. A nil predicate renders as nil.
// Array fields match when any element matches, so recipients need no special case.
func compileFilter(p domain.Predicate) (bson.M, error) {
	if p == nil {
		return nil, nil
	}

	switch p := p.(type) {
	case domain.And:
		children, err := compileChildren(p.Children)
		if err != nil {
			return nil, err
		}
		return bson.M{"$and": children}, nil
	case domain.Or:
		children, err := compileChildren(p.Children)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": children}, nil
	case domain.Eq:
		field, err := messageField(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.M{field: p.Value}, nil
	case domain.In:
		field, err := messageField(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.M{field: bson.M{"$in": p.Values}}, nil
	case domain.Range:
		field, err := messageField(p.Field)
		if err != nil {
			return nil, err
		}
		bounds := bson.M{}
		if p.Gte != nil {
			bounds["$gte"] = *p.Gte
		}
		if p.Lte != nil {
			bounds["$lte"] = *p.Lte
		}
		if len(bounds) == 0 {
			return bson.M{field: bson.M{"$exists": true}}, nil
		}
		return bson.M{field: bounds}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func compileChildren(children []domain.Predicate) (bson.A, error) {
	docs := make(bson.A, 0, len(children))
	for _, c := range children {
		doc, err := compileFilter(c)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func messageField(f domain.Field) (string, error) {
	field, ok := messageFields[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return field, nil
}
