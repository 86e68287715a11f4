package ingest

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Summary describes the ids stored in a loaded table.
type Summary struct {
	Table string
	Items int
	MinID int64
	MaxID int64
}

type idOnly struct {
	ID int64 `dynamodbav:"id"`
}

// Inspect scans the table, reading only the key attribute.
func Inspect(ctx context.Context, client dynamodb.ScanAPIClient, tableName string) (Summary, error) {
	expr, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name(IDAttribute))).
		Build()
	if err != nil {
		return Summary{}, fmt.Errorf("build projection: %w", err)
	}

	summary := Summary{Table: tableName}
	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:                &tableName,
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("scan %s: %w", tableName, err)
		}
		var ids []idOnly
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &ids); err != nil {
			return Summary{}, fmt.Errorf("unmarshal ids: %w", err)
		}
		for _, it := range ids {
			if summary.Items == 0 || it.ID < summary.MinID {
				summary.MinID = it.ID
			}
			if summary.Items == 0 || it.ID > summary.MaxID {
				summary.MaxID = it.ID
			}
			summary.Items++
		}
	}
	return summary, nil
}
