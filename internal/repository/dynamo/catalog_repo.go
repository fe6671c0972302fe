// Package dynamo reads the maintenance catalog from DynamoDB tables.
package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ordenapp/internal/domain"
	"ordenapp/internal/repository"
)

const (
	defaultServiceTypesTable = "service_types"
	defaultActivitiesTable   = "activity_definitions"
)

// API is the subset of the DynamoDB client used by the catalog
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type serviceTypeItem struct {
	ID     int64  `dynamodbav:"id"`
	Code   string `dynamodbav:"code"`
	Name   string `dynamodbav:"name"`
	Active bool   `dynamodbav:"active"`
}

// activityItem is a denormalized activity definition.
//
// Table requirements:
//   - PK: service_type_id (number)
//   - SK: id (number)
type activityItem struct {
	ServiceTypeID     int64    `dynamodbav:"service_type_id"`
	ID                int64    `dynamodbav:"id"`
	Name              string   `dynamodbav:"name"`
	Kind              string   `dynamodbav:"kind"`
	ExecutionOrder    int      `dynamodbav:"execution_order"`
	Mandatory         bool     `dynamodbav:"mandatory"`
	Active            bool     `dynamodbav:"active"`
	GroupID           int64    `dynamodbav:"group_id"`
	GroupName         string   `dynamodbav:"group_name"`
	GroupDisplayOrder int      `dynamodbav:"group_display_order"`
	ParameterID       *int64   `dynamodbav:"parameter_id,omitempty"`
	ParameterName     string   `dynamodbav:"parameter_name,omitempty"`
	Unit              string   `dynamodbav:"unit,omitempty"`
	MinValue          *float64 `dynamodbav:"min_value,omitempty"`
	MaxValue          *float64 `dynamodbav:"max_value,omitempty"`
}

// CatalogRepo implements repository.CatalogRepository on DynamoDB
type CatalogRepo struct {
	ddb               API
	serviceTypesTable string
	activitiesTable   string
}

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

// NewCatalogRepo creates a catalog reader; empty table names fall back to the defaults
func NewCatalogRepo(ddb API, serviceTypesTable, activitiesTable string) *CatalogRepo {
	if serviceTypesTable == "" {
		serviceTypesTable = defaultServiceTypesTable
	}
	if activitiesTable == "" {
		activitiesTable = defaultActivitiesTable
	}
	return &CatalogRepo{ddb: ddb, serviceTypesTable: serviceTypesTable, activitiesTable: activitiesTable}
}

func (r *CatalogRepo) GetServiceType(ctx context.Context, id int64) (*domain.ServiceType, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.serviceTypesTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get service type: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it serviceTypeItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to decode service type: %w", err)
	}
	return &domain.ServiceType{ID: it.ID, Code: it.Code, Name: it.Name, Active: it.Active}, nil
}

// ListActivities queries every page of the service type partition and returns
// the active definitions in execution order
func (r *CatalogRepo) ListActivities(ctx context.Context, serviceTypeID int64) ([]domain.ActivityDefinition, error) {
	paginator := dynamodb.NewQueryPaginator(r.ddb, &dynamodb.QueryInput{
		TableName:              aws.String(r.activitiesTable),
		KeyConditionExpression: aws.String("#st = :st"),
		ExpressionAttributeNames: map[string]string{
			"#st": "service_type_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st": &types.AttributeValueMemberN{Value: strconv.FormatInt(serviceTypeID, 10)},
		},
	})

	var defs []domain.ActivityDefinition
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list activities: %w", err)
		}
		var items []activityItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode activities: %w", err)
		}
		for _, it := range items {
			defs = append(defs, fromActivityItem(it))
		}
	}
	return domain.SortActivities(defs), nil
}

// GetActivity looks an activity up by id alone. The table is keyed by service
// type, so this scans; catalogs are small and the call is only made when a
// technician adds an item from the field.
func (r *CatalogRepo) GetActivity(ctx context.Context, id int64) (*domain.ActivityDefinition, error) {
	paginator := dynamodb.NewScanPaginator(r.ddb, &dynamodb.ScanInput{
		TableName:        aws.String(r.activitiesTable),
		FilterExpression: aws.String("#id = :id"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get activity: %w", err)
		}
		if len(page.Items) == 0 {
			continue
		}
		var it activityItem
		if err := attributevalue.UnmarshalMap(page.Items[0], &it); err != nil {
			return nil, fmt.Errorf("failed to decode activity: %w", err)
		}
		d := fromActivityItem(it)
		return &d, nil
	}
	return nil, nil
}

func fromActivityItem(it activityItem) domain.ActivityDefinition {
	d := domain.ActivityDefinition{
		ID:             it.ID,
		ServiceTypeID:  it.ServiceTypeID,
		Group:          domain.SystemGroup{ID: it.GroupID, Name: it.GroupName, DisplayOrder: it.GroupDisplayOrder},
		Name:           it.Name,
		Kind:           it.Kind,
		ExecutionOrder: it.ExecutionOrder,
		Mandatory:      it.Mandatory,
		Active:         it.Active,
	}
	if it.ParameterID != nil {
		d.Parameter = &domain.MeasurementParameter{
			ID:       *it.ParameterID,
			Name:     it.ParameterName,
			Unit:     it.Unit,
			MinValue: it.MinValue,
			MaxValue: it.MaxValue,
		}
	}
	return d
}

func toActivityItem(d domain.ActivityDefinition) activityItem {
	it := activityItem{
		ServiceTypeID:     d.ServiceTypeID,
		ID:                d.ID,
		Name:              d.Name,
		Kind:              d.Kind,
		ExecutionOrder:    d.ExecutionOrder,
		Mandatory:         d.Mandatory,
		Active:            d.Active,
		GroupID:           d.Group.ID,
		GroupName:         d.Group.Name,
		GroupDisplayOrder: d.Group.DisplayOrder,
	}
	if d.Parameter != nil {
		id := d.Parameter.ID
		it.ParameterID = &id
		it.ParameterName = d.Parameter.Name
		it.Unit = d.Parameter.Unit
		it.MinValue = d.Parameter.MinValue
		it.MaxValue = d.Parameter.MaxValue
	}
	return it
}

// MarshalActivity encodes a definition as an activities table item, used by
// catalog import tooling and tests
func MarshalActivity(d domain.ActivityDefinition) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(toActivityItem(d))
}

// MarshalServiceType encodes a service type as a table item
func MarshalServiceType(st domain.ServiceType) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(serviceTypeItem{ID: st.ID, Code: st.Code, Name: st.Name, Active: st.Active})
}
