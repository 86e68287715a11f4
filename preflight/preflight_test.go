package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	arn string
	err error
}

func (f fakeIdentity) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(f.arn), Account: aws.String("123456789012")}, nil
}

// fakeSimulator allows every action except those in deny.
type fakeSimulator struct {
	deny   map[string]bool
	inputs []*iam.SimulatePrincipalPolicyInput
	err    error
}

func (f *fakeSimulator) SimulatePrincipalPolicy(_ context.Context, params *iam.SimulatePrincipalPolicyInput, _ ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	out := &iam.SimulatePrincipalPolicyOutput{}
	for _, action := range params.ActionNames {
		decision := iamtypes.PolicyEvaluationDecisionTypeAllowed
		if f.deny[action] {
			decision = iamtypes.PolicyEvaluationDecisionTypeImplicitDeny
		}
		out.EvaluationResults = append(out.EvaluationResults, iamtypes.EvaluationResult{
			EvalActionName:   aws.String(action),
			EvalResourceName: aws.String(params.ResourceArns[0]),
			EvalDecision:     decision,
		})
	}
	return out, nil
}

func TestCheck(t *testing.T) {
	sim := &fakeSimulator{deny: map[string]bool{"dynamodb:CreateTable": true}}
	identity := fakeIdentity{arn: "arn:aws:sts::123456789012:assumed-role/csvload-lambda/csvload"}

	report, err := Check(context.Background(), identity, sim, Resources{Bucket: "uploads", Region: "eu-west-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/csvload-lambda", report.Principal)
	assert.Len(t, report.Decisions, 5)
	assert.False(t, report.OK())
	assert.Equal(t, []Decision{{
		Action:   "dynamodb:CreateTable",
		Resource: "arn:aws:dynamodb:eu-west-1:123456789012:table/*",
		Decision: iamtypes.PolicyEvaluationDecisionTypeImplicitDeny,
	}}, report.Denied())

	require.Len(t, sim.inputs, 3)
	assert.Equal(t, []string{"arn:aws:s3:::uploads/*"}, sim.inputs[0].ResourceArns)
	assert.Equal(t, "arn:aws:iam::123456789012:role/csvload-lambda", *sim.inputs[0].PolicySourceArn)
}

func TestCheck_AllAllowed(t *testing.T) {
	identity := fakeIdentity{arn: "arn:aws:iam::123456789012:user/alice"}
	report, err := Check(context.Background(), identity, &fakeSimulator{}, Resources{Bucket: "uploads", Table: "orders"}, nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "arn:aws:iam::123456789012:user/alice", report.Principal)
}

func TestCheck_Errors(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	_, err := Check(ctx, fakeIdentity{err: boom}, &fakeSimulator{}, Resources{Bucket: "uploads"}, nil)
	assert.ErrorIs(t, err, boom)

	_, err = Check(ctx, fakeIdentity{arn: "arn:aws:iam::1:user/a"}, &fakeSimulator{err: boom}, Resources{Bucket: "uploads"}, nil)
	assert.ErrorIs(t, err, boom)

	_, err = Check(ctx, fakeIdentity{arn: "arn:aws:iam::1:user/a"}, &fakeSimulator{}, Resources{}, nil)
	assert.Error(t, err)
}

func TestPrincipalARN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "arn:aws:iam::123456789012:user/alice", want: "arn:aws:iam::123456789012:user/alice"},
		{in: "arn:aws:sts::123456789012:assumed-role/loader/session-1", want: "arn:aws:iam::123456789012:role/loader"},
		{in: "arn:aws-cn:sts::123456789012:assumed-role/loader/s", want: "arn:aws-cn:iam::123456789012:role/loader"},
		{in: "arn:aws:sts::123456789012:federated-user/bob", wantErr: true},
		{in: "not-an-arn", wantErr: true},
	}
	for _, tt := range tests {
		got, err := PrincipalARN(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestTableARN(t *testing.T) {
	assert.Equal(t, "arn:aws:dynamodb:*:*:table/*", TableARN("", "", ""))
	assert.Equal(t, "arn:aws:dynamodb:us-east-1:1:table/orders", TableARN("us-east-1", "1", "orders"))
}
