// Package preflight checks that the current AWS principal may perform every
// call a load makes, using IAM policy simulation.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// IdentityClient is the part of the STS client preflight needs.
type IdentityClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var (
	_ IdentityClient                       = (*sts.Client)(nil)
	_ iam.SimulatePrincipalPolicyAPIClient = (*iam.Client)(nil)
)

// Resources names what a load touches.
type Resources struct {
	Bucket string
	// Table restricts the DynamoDB checks to one table. Empty means any table.
	Table  string
	Region string
}

// Decision is the simulated outcome of one action on one resource.
type Decision struct {
	Action   string
	Resource string
	Decision iamtypes.PolicyEvaluationDecisionType
}

func (d Decision) Allowed() bool {
	return d.Decision == iamtypes.PolicyEvaluationDecisionTypeAllowed
}

// Report is the result of Check.
type Report struct {
	Principal string
	Decisions []Decision
}

// Denied returns the decisions that did not allow the action.
func (r Report) Denied() []Decision {
	var denied []Decision
	for _, d := range r.Decisions {
		if !d.Allowed() {
			denied = append(denied, d)
		}
	}
	return denied
}

func (r Report) OK() bool {
	return len(r.Denied()) == 0
}

type check struct {
	resource string
	actions  []string
}

// Check resolves the caller and simulates the S3 and DynamoDB actions of a
// load against its IAM policies.
func Check(ctx context.Context, identity IdentityClient, simulator iam.SimulatePrincipalPolicyAPIClient, res Resources, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if res.Bucket == "" {
		return Report{}, fmt.Errorf("bucket is required")
	}
	out, err := identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Report{}, fmt.Errorf("get caller identity: %w", err)
	}
	principal, err := PrincipalARN(aws.ToString(out.Arn))
	if err != nil {
		return Report{}, err
	}
	logger.Debug("simulating policies", "principal", principal)

	tableARN := TableARN(res.Region, aws.ToString(out.Account), res.Table)
	checks := []check{
		{resource: "arn:aws:s3:::" + res.Bucket + "/*", actions: []string{"s3:GetObject"}},
		{resource: "*", actions: []string{"dynamodb:ListTables"}},
		{resource: tableARN, actions: []string{
			"dynamodb:CreateTable",
			"dynamodb:DescribeTable",
			"dynamodb:BatchWriteItem",
		}},
	}

	report := Report{Principal: principal}
	for _, c := range checks {
		decisions, err := simulate(ctx, simulator, principal, c)
		if err != nil {
			return Report{}, err
		}
		report.Decisions = append(report.Decisions, decisions...)
	}
	for _, d := range report.Denied() {
		logger.Warn("action denied", "action", d.Action, "resource", d.Resource, "decision", d.Decision)
	}
	return report, nil
}

func simulate(ctx context.Context, simulator iam.SimulatePrincipalPolicyAPIClient, principal string, c check) ([]Decision, error) {
	paginator := iam.NewSimulatePrincipalPolicyPaginator(simulator, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: &principal,
		ActionNames:     c.actions,
		ResourceArns:    []string{c.resource},
	})
	var decisions []Decision
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("simulate %s on %s: %w", strings.Join(c.actions, ","), c.resource, err)
		}
		for _, r := range page.EvaluationResults {
			resource := aws.ToString(r.EvalResourceName)
			if resource == "" {
				resource = c.resource
			}
			decisions = append(decisions, Decision{
				Action:   aws.ToString(r.EvalActionName),
				Resource: resource,
				Decision: r.EvalDecision,
			})
		}
	}
	return decisions, nil
}

// TableARN returns the ARN of a DynamoDB table, or of every table when name
// is empty. Missing region or account become wildcards.
func TableARN(region, account, name string) string {
	if region == "" {
		region = "*"
	}
	if account == "" {
		account = "*"
	}
	if name == "" {
		name = "*"
	}
	return arn.ARN{
		Partition: "aws",
		Service:   "dynamodb",
		Region:    region,
		AccountID: account,
		Resource:  "table/" + name,
	}.String()
}

// PrincipalARN returns the ARN IAM can simulate for a caller ARN. An STS
// assumed-role session is mapped to its role; role paths are not part of the
// session ARN, so roles with a path are not resolved exactly.
func PrincipalARN(callerARN string) (string, error) {
	parsed, err := arn.Parse(callerARN)
	if err != nil {
		return "", fmt.Errorf("parse caller arn %q: %w", callerARN, err)
	}
	if parsed.Service != "sts" {
		return callerARN, nil
	}
	parts := strings.Split(parsed.Resource, "/")
	if len(parts) < 2 || parts[0] != "assumed-role" {
		return "", fmt.Errorf("unsupported sts principal %q", callerARN)
	}
	return arn.ARN{
		Partition: parsed.Partition,
		Service:   "iam",
		AccountID: parsed.AccountID,
		Resource:  "role/" + parts[1],
	}.String(), nil
}
