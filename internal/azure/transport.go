package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"

	"github.com/cloudscape-labs/cloudscape/pkg/core"
)

// GraphTransport executes resource graph queries. Pagination is exhausted
// internally with the skip-token loop; callers always receive the full
// result set.
type GraphTransport struct{}

// NewGraphTransport creates a transport.
func NewGraphTransport() *GraphTransport {
	return &GraphTransport{}
}

// Execute runs the query against the subscriptions, following skip tokens
// until every record has been processed. Transport failures are wrapped as
// *core.QueryExecutionError carrying the HTTP status when one exists.
func (t *GraphTransport) Execute(ctx context.Context, cred core.Credential, subscriptionIDs []string, query string) ([]core.RawGraphRow, error) {
	client, err := armresourcegraph.NewClient(staticTokenCredential{token: cred.Token}, nil)
	if err != nil {
		return nil, &core.QueryExecutionError{Err: fmt.Errorf("create graph client: %w", err)}
	}

	subs := make([]*string, 0, len(subscriptionIDs))
	for _, id := range subscriptionIDs {
		subs = append(subs, to.Ptr(id))
	}

	var (
		rows      []core.RawGraphRow
		skipToken *string
		processed int64
	)
	for {
		resp, err := client.Resources(ctx, armresourcegraph.QueryRequest{
			Subscriptions: subs,
			Query:         to.Ptr(query),
			Options: &armresourcegraph.QueryRequestOptions{
				ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
				SkipToken:    skipToken,
			},
		}, nil)
		if err != nil {
			return nil, wrapQueryError(err)
		}

		page, err := decodeRows(resp.Data)
		if err != nil {
			return nil, &core.QueryExecutionError{Err: err}
		}
		rows = append(rows, page...)
		processed += int64(len(page))

		if resp.SkipToken == nil || *resp.SkipToken == "" {
			break
		}
		if resp.TotalRecords != nil && processed >= *resp.TotalRecords {
			break
		}
		skipToken = resp.SkipToken
	}
	return rows, nil
}

// decodeRows converts the objectArray response payload into typed rows via
// a JSON round trip, the same shape contract the graph service documents.
func decodeRows(data any) ([]core.RawGraphRow, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode graph response page: %w", err)
	}
	var rows []core.RawGraphRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode graph response page: %w", err)
	}
	return rows, nil
}

// wrapQueryError surfaces the HTTP status from SDK response errors so the
// loader can distinguish rate limiting from everything else.
func wrapQueryError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return &core.QueryExecutionError{StatusCode: respErr.StatusCode, Err: err}
	}
	return &core.QueryExecutionError{Err: err}
}
