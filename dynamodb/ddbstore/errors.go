package ddbstore

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Errors mirror the shapes the AWS SDK decodes from DynamoDB, so callers can
// use errors.As against the same types for both backends.

func validationError(msg string) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: msg,
		Fault:   smithy.FaultClient,
	}
}

func tableNotFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String("Requested resource not found: Table: " + name + " not found"),
	}
}
