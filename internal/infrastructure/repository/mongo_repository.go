package repository

import (
	"context"
	"fmt"
	"time"

	"pestops-sync/internal/domain"
	"pestops-sync/internal/infrastructure/repository/entity"
	"pestops-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoEntityRepository implements EntityRepository using MongoDB
type MongoEntityRepository struct {
	customersCollection *mongo.Collection
	productsCollection  *mongo.Collection
	invoicesCollection  *mongo.Collection
}

// NewMongoEntityRepository creates a new MongoDB repository for business entities
func NewMongoEntityRepository(db *mongo.Database) ports.EntityRepository {
	return &MongoEntityRepository{
		customersCollection: db.Collection("customers"),
		productsCollection:  db.Collection("products"),
		invoicesCollection:  db.Collection("invoices"),
	}
}

func stamp(id *string, createdAt, updatedAt *time.Time) {
	now := time.Now()
	if *id == "" {
		*id = primitive.NewObjectID().Hex()
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func replaceByID(ctx context.Context, coll *mongo.Collection, accountID, id string, doc interface{}) error {
	result, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "accountId": accountID}, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListCustomers retrieves all customers of an account
func (r *MongoEntityRepository) ListCustomers(ctx context.Context, accountID string) ([]*domain.Customer, error) {
	cursor, err := r.customersCollection.Find(ctx, bson.M{"accountId": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer cursor.Close(ctx)

	var customers []*domain.Customer
	for cursor.Next(ctx) {
		var doc entity.MongoCustomerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		customers = append(customers, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return customers, nil
}

// GetCustomer returns nil, nil when the customer does not exist
func (r *MongoEntityRepository) GetCustomer(ctx context.Context, accountID, id string) (*domain.Customer, error) {
	var doc entity.MongoCustomerDoc
	err := r.customersCollection.FindOne(ctx, bson.M{"_id": id, "accountId": accountID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoEntityRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if _, err := r.customersCollection.InsertOne(ctx, entity.MongoCustomerDocFromDomain(c)); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *MongoEntityRepository) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	c.UpdatedAt = time.Now()
	if err := replaceByID(ctx, r.customersCollection, c.AccountID, c.ID, entity.MongoCustomerDocFromDomain(c)); err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (r *MongoEntityRepository) ListProducts(ctx context.Context, accountID string) ([]*domain.Product, error) {
	cursor, err := r.productsCollection.Find(ctx, bson.M{"accountId": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	for cursor.Next(ctx) {
		var doc entity.MongoProductDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return products, nil
}

// GetProduct returns nil, nil when the product does not exist
func (r *MongoEntityRepository) GetProduct(ctx context.Context, accountID, id string) (*domain.Product, error) {
	var doc entity.MongoProductDoc
	err := r.productsCollection.FindOne(ctx, bson.M{"_id": id, "accountId": accountID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoEntityRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if _, err := r.productsCollection.InsertOne(ctx, entity.MongoProductDocFromDomain(p)); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *MongoEntityRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now()
	if err := replaceByID(ctx, r.productsCollection, p.AccountID, p.ID, entity.MongoProductDocFromDomain(p)); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *MongoEntityRepository) findInvoice(ctx context.Context, filter bson.M) (*domain.Invoice, error) {
	var doc entity.MongoInvoiceDoc
	err := r.invoicesCollection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoEntityRepository) GetInvoice(ctx context.Context, accountID, id string) (*domain.Invoice, error) {
	return r.findInvoice(ctx, bson.M{"_id": id, "accountId": accountID})
}

func (r *MongoEntityRepository) FindInvoiceByNumber(ctx context.Context, accountID, number string) (*domain.Invoice, error) {
	return r.findInvoice(ctx, bson.M{"accountId": accountID, "number": number})
}

func (r *MongoEntityRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	stamp(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if _, err := r.invoicesCollection.InsertOne(ctx, entity.MongoInvoiceDocFromDomain(inv)); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *MongoEntityRepository) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	inv.UpdatedAt = time.Now()
	if err := replaceByID(ctx, r.invoicesCollection, inv.AccountID, inv.ID, entity.MongoInvoiceDocFromDomain(inv)); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}
