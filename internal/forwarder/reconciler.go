// Package forwarder reconciles each function's log group subscription with
// the configured Datadog forwarder: the minimal live API mutation (or none)
// that moves observed state to the desired state, never duplicating a log
// group or filter the template or the account already has.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/DataDog/serverless-macro-go/internal/cfn"
	"github.com/DataDog/serverless-macro-go/internal/graph"
	"github.com/DataDog/serverless-macro-go/internal/logging"
)

const (
	// FilterName is the well-known name of the macro-managed subscription
	// filter; its presence on a log group marks that group as reconciled.
	FilterName = "datadog-macro-filter"

	// DefaultMaxSubscriptions is the platform limit on subscription filters
	// per log group. It is a platform constant that has changed before, so it
	// stays overridable through configuration.
	DefaultMaxSubscriptions = 2

	lambdaLogGroupPrefix = "/aws/lambda/"
)

// LogsAPI is the subset of the CloudWatch Logs client the reconciler uses.
type LogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DescribeSubscriptionFilters(ctx context.Context, params *cloudwatchlogs.DescribeSubscriptionFiltersInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeSubscriptionFiltersOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutSubscriptionFilter(ctx context.Context, params *cloudwatchlogs.PutSubscriptionFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutSubscriptionFilterOutput, error)
}

// Reconciler drives subscription reconciliation for one transform invocation.
// It is not safe for concurrent use and is not meant to be: functions are
// processed strictly sequentially so the per-stack listing cache is populated
// before it is consulted and two ambiguously named functions cannot race.
type Reconciler struct {
	client       LogsAPI
	forwarderARN string
	stackName    string
	maxFilters   int

	// stackGroups caches the once-per-stack log group listing that amortizes
	// DescribeLogGroups across all dynamically named functions. Scoped to the
	// reconciler so repeated invocations never share stale state.
	stackGroups       []string
	stackGroupsLoaded bool
}

// New builds a reconciler for one invocation. maxFilters <= 0 selects
// DefaultMaxSubscriptions.
func New(client LogsAPI, forwarderARN, stackName string, maxFilters int) *Reconciler {
	if maxFilters <= 0 {
		maxFilters = DefaultMaxSubscriptions
	}
	return &Reconciler{
		client:       client,
		forwarderARN: forwarderARN,
		stackName:    stackName,
		maxFilters:   maxFilters,
	}
}

// Reconcile subscribes every function's log group to the forwarder. Fatal
// conditions abort the pass; live mutations already performed for earlier
// functions are kept (all-or-partial, never rolled back).
func (r *Reconciler) Reconcile(ctx context.Context, g *graph.Graph) error {
	// A missing stack name is detected for every affected function up front,
	// before any API call, and reported as one error.
	if r.stackName == "" {
		var dynamic []string
		for _, fn := range g.Functions {
			if _, ok := explicitName(fn); !ok {
				dynamic = append(dynamic, fn.Key)
			}
		}
		if len(dynamic) > 0 {
			return &MissingFunctionNameError{FunctionKeys: dynamic}
		}
	}

	for _, fn := range g.Functions {
		if err := r.reconcileFunction(ctx, g, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reconcileFunction(ctx context.Context, g *graph.Graph, fn *graph.FunctionResource) error {
	name, named := explicitName(fn)

	liveGroup, err := r.findLiveGroup(ctx, fn, name, named)
	if err != nil {
		return err
	}
	if liveGroup != "" {
		// The group exists outside the template's control; the only legal
		// mutation is a live subscription call.
		return r.subscribeLive(ctx, liveGroup)
	}

	declared, found := findDeclaredGroup(g, fn, name)
	if found {
		if hasDeclaredFilter(g, declared) {
			// The user manages both; respect the declaration.
			logging.Debug("log group and subscription already declared in template",
				"function", fn.Key, "logGroup", declared.Key)
			return nil
		}
		// Subscribing via the API is unsafe here: the group does not exist
		// until the stack deploys.
		return &MissingSubDeclarationError{FunctionKey: fn.Key, LogGroupKey: declared.Key}
	}

	if !named {
		return &MissingFunctionNameError{FunctionKeys: []string{fn.Key}}
	}

	// Nothing live, nothing declared, and the name is fixed: the macro can
	// own the group outright.
	groupName := lambdaLogGroupPrefix + name
	if err := r.createGroup(ctx, groupName); err != nil {
		return err
	}
	return r.putFilter(ctx, groupName)
}

// findLiveGroup locates an existing log group for the function: directly by
// name when the name is explicit, otherwise by prefix against the cached
// per-stack listing.
func (r *Reconciler) findLiveGroup(ctx context.Context, fn *graph.FunctionResource, name string, named bool) (string, error) {
	if named {
		groupName := lambdaLogGroupPrefix + name
		out, err := r.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
			LogGroupNamePrefix: aws.String(groupName),
		})
		if err != nil {
			return "", err
		}
		for _, lg := range out.LogGroups {
			if aws.ToString(lg.LogGroupName) == groupName {
				return groupName, nil
			}
		}
		return "", nil
	}

	groups, err := r.listStackGroups(ctx)
	if err != nil {
		return "", err
	}
	prefix := lambdaLogGroupPrefix + r.stackName + "-" + fn.Key
	for _, groupName := range groups {
		if strings.HasPrefix(groupName, prefix) {
			return groupName, nil
		}
	}
	return "", nil
}

func (r *Reconciler) listStackGroups(ctx context.Context) ([]string, error) {
	if r.stackGroupsLoaded {
		return r.stackGroups, nil
	}

	input := &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(lambdaLogGroupPrefix + r.stackName),
	}
	var names []string
	for {
		out, err := r.client.DescribeLogGroups(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, lg := range out.LogGroups {
			names = append(names, aws.ToString(lg.LogGroupName))
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	r.stackGroups = names
	r.stackGroupsLoaded = true
	return names, nil
}

// subscribeLive attaches the forwarder filter to an existing log group unless
// it already carries one or the platform filter cap is reached.
func (r *Reconciler) subscribeLive(ctx context.Context, groupName string) error {
	out, err := r.client.DescribeSubscriptionFilters(ctx, &cloudwatchlogs.DescribeSubscriptionFiltersInput{
		LogGroupName: aws.String(groupName),
	})
	if err != nil {
		return err
	}
	for _, filter := range out.SubscriptionFilters {
		if aws.ToString(filter.FilterName) == FilterName {
			logging.Debug("subscription filter already present", "logGroup", groupName)
			return nil
		}
	}
	if len(out.SubscriptionFilters) >= r.maxFilters {
		logging.Warn("log group has reached the subscription filter limit, skipping",
			"logGroup", groupName, "limit", r.maxFilters)
		return nil
	}
	return r.putFilter(ctx, groupName)
}

func (r *Reconciler) createGroup(ctx context.Context, groupName string) error {
	_, err := r.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(groupName),
	})
	var exists *types.ResourceAlreadyExistsException
	if errors.As(err, &exists) {
		return nil
	}
	return wrapAPIError(err, "CreateLogGroup", groupName)
}

func (r *Reconciler) putFilter(ctx context.Context, groupName string) error {
	logging.Info("subscribing log group to forwarder", "logGroup", groupName)
	_, err := r.client.PutSubscriptionFilter(ctx, &cloudwatchlogs.PutSubscriptionFilterInput{
		DestinationArn: aws.String(r.forwarderARN),
		FilterName:     aws.String(FilterName),
		FilterPattern:  aws.String(""),
		LogGroupName:   aws.String(groupName),
	})
	return wrapAPIError(err, "PutSubscriptionFilter", groupName)
}

// wrapAPIError prefixes a CloudWatch Logs service error with the operation
// and log group it failed against, keeping the service error code visible in
// the macro's single concatenated failure message.
func wrapAPIError(err error, operation, groupName string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s failed for log group %s (%s): %w",
			operation, groupName, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s failed for log group %s: %w", operation, groupName, err)
}

// explicitName resolves the function's declared FunctionName to a literal.
// Intrinsic-encoded names that do not resolve count as dynamic.
func explicitName(fn *graph.FunctionResource) (string, bool) {
	v := fn.FunctionName()
	if v == nil {
		return "", false
	}
	name, ok := cfn.Resolve(v, nil)
	if !ok || name == "" || strings.Contains(name, "${") {
		return "", false
	}
	return name, true
}

// findDeclaredGroup searches the template's own log group declarations for
// one naming this function: a literal "/aws/lambda/<name>", an Fn::Sub whose
// template references the function's logical id, or an Fn::Join with a Ref to
// it.
func findDeclaredGroup(g *graph.Graph, fn *graph.FunctionResource, name string) (graph.DeclaredResource, bool) {
	for _, lg := range g.LogGroups() {
		raw, ok := lg.Properties["LogGroupName"]
		if !ok {
			continue
		}
		switch v := cfn.Parse(raw).(type) {
		case cfn.Literal:
			if name != "" && v.Value == lambdaLogGroupPrefix+name {
				return lg, true
			}
		case cfn.Sub:
			if strings.Contains(v.Template, "${"+fn.Key+"}") {
				return lg, true
			}
		case cfn.Join:
			for _, part := range v.Parts {
				if ref, ok := part.(cfn.Ref); ok && ref.Name == fn.Key {
					return lg, true
				}
			}
		}
	}
	return graph.DeclaredResource{}, false
}

// hasDeclaredFilter reports whether the template declares a subscription
// filter attached to the given declared log group.
func hasDeclaredFilter(g *graph.Graph, lg graph.DeclaredResource) bool {
	groupName, _ := lg.Properties["LogGroupName"].(string)
	for _, sf := range g.SubscriptionFilters() {
		raw, ok := sf.Properties["LogGroupName"]
		if !ok {
			continue
		}
		switch v := cfn.Parse(raw).(type) {
		case cfn.Ref:
			if v.Name == lg.Key {
				return true
			}
		case cfn.Literal:
			if groupName != "" && v.Value == groupName {
				return true
			}
		case cfn.Sub:
			if strings.Contains(v.Template, "${"+lg.Key+"}") {
				return true
			}
		}
	}
	return false
}
