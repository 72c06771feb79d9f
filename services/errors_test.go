package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	type required struct {
		Name string `validate:"required"`
	}
	invalid := validator.New().Struct(required{})

	cases := map[string]struct {
		err  error
		want ErrorKind
	}{
		"nil":                {nil, KindUnknown},
		"store error":        {&StoreError{Kind: KindPermission, Op: "put", Err: errors.New("denied")}, KindPermission},
		"wrapped sentinel":   {fmt.Errorf("replay: %w", ErrInvariant), KindInvariant},
		"transport wins":     {fmt.Errorf("%w: %w", ErrTransport, ErrTransient), KindTransport},
		"deadline":           {context.DeadlineExceeded, KindTransient},
		"condition failed":   {&types.ConditionalCheckFailedException{Message: aws.String("no")}, KindConflict},
		"validation":         {invalid, KindInvariant},
		"throttled":          {&smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, KindTransient},
		"access denied":      {&smithy.GenericAPIError{Code: "AccessDeniedException"}, KindPermission},
		"missing table":      {&smithy.GenericAPIError{Code: "ResourceNotFoundException"}, KindNotFound},
		"server fault":       {&smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, KindTransient},
		"network":            {&net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindTransient},
		"plain error":        {errors.New("boom"), KindUnknown},
		"not found sentinel": {ErrNotFound, KindNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}

func TestStoreErrorMatchesSentinels(t *testing.T) {
	err := storeError("UpdateItem Likes", &smithy.GenericAPIError{Code: "ThrottlingException"})
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrPermission)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "UpdateItem Likes")

	again := storeError("outer", err)
	assert.Same(t, err, again)
	assert.Nil(t, storeError("noop", nil))
}
