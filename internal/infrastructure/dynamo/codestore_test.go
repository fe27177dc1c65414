package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}
func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *mockAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.DescribeTableOutput{}, args.Error(0)
}

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestStore() (*CodeStore, *mockAPI) {
	api := new(mockAPI)
	s := NewCodeStore(api, "otp_codes")
	s.now = func() time.Time { return fixedNow }
	return s, api
}

func record(code string, expiresAt int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey:       &types.AttributeValueMemberS{Value: "otp:a@example.com"},
		attrCode:      &types.AttributeValueMemberS{Value: code},
		attrExpiresAt: numAttr(expiresAt),
	}
}

func TestCodeStore_SetWritesExpiry(t *testing.T) {
	s, api := newTestStore()
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		exp, ok := in.Item[attrExpiresAt].(*types.AttributeValueMemberN)
		code, _ := in.Item[attrCode].(*types.AttributeValueMemberS)
		return *in.TableName == "otp_codes" && ok &&
			exp.Value == fmt.Sprint(fixedNow.Add(20*time.Second).Unix()) &&
			code != nil && code.Value == "hash"
	})).Return(nil)

	require.NoError(t, s.Set(context.Background(), "otp:a@example.com", "hash", 20*time.Second))
	api.AssertExpectations(t)
}

func TestCodeStore_SetError(t *testing.T) {
	s, api := newTestStore()
	api.On("PutItem", mock.Anything, mock.Anything).Return(errors.New("throttled"))
	assert.ErrorContains(t, s.Set(context.Background(), "k", "v", time.Minute), "throttled")
}

func TestCodeStore_Get(t *testing.T) {
	tests := []struct {
		name   string
		item   map[string]types.AttributeValue
		wantOK bool
	}{
		{"absent", nil, false},
		{"live", record("hash", fixedNow.Unix()+10), true},
		{"past ttl but not yet reaped", record("hash", fixedNow.Unix()-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, api := newTestStore()
			api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
				return in.ConsistentRead != nil && *in.ConsistentRead
			})).Return(&dynamodb.GetItemOutput{Item: tt.item}, nil)

			v, ok, err := s.Get(context.Background(), "otp:a@example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "hash", v)
			}
		})
	}
}

func TestCodeStore_CheckAndDelete(t *testing.T) {
	s, api := newTestStore()
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		v, _ := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS)
		return v != nil && v.Value == "hash" && *in.ConditionExpression == "#code = :v AND #exp > :now"
	})).Return(nil)

	ok, err := s.CheckAndDelete(context.Background(), "otp:a@example.com", "hash")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCodeStore_CheckAndDelete_ConditionFailed(t *testing.T) {
	s, api := newTestStore()
	api.On("DeleteItem", mock.Anything, mock.Anything).
		Return(fmt.Errorf("operation error: %w", &types.ConditionalCheckFailedException{}))

	ok, err := s.CheckAndDelete(context.Background(), "k", "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStore_CheckAndDelete_Error(t *testing.T) {
	s, api := newTestStore()
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(errors.New("network down"))

	ok, err := s.CheckAndDelete(context.Background(), "k", "v")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestIsConditionFailed(t *testing.T) {
	assert.True(t, isConditionFailed(&types.ConditionalCheckFailedException{}))
	assert.False(t, isConditionFailed(errors.New("other")))
	assert.False(t, isConditionFailed(nil))
}

func TestCodeStore_Ping(t *testing.T) {
	s, api := newTestStore()
	api.On("DescribeTable", mock.Anything, mock.MatchedBy(func(in *dynamodb.DescribeTableInput) bool {
		return *in.TableName == "otp_codes"
	})).Return(nil).Once()
	api.On("DescribeTable", mock.Anything, mock.Anything).Return(&types.ResourceNotFoundException{})

	assert.NoError(t, s.Ping(context.Background()))
	assert.Error(t, s.Ping(context.Background()))
}
