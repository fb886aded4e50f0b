package forwarder

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/serverless-macro-go/internal/graph"
)

const forwarderARN = "arn:aws:lambda:us-east-1:123456789012:function:datadog-forwarder"

// fakeLogsAPI reflects mutations back into its own state, so a second
// reconciliation pass observes the effects of the first.
type fakeLogsAPI struct {
	groups  []string
	filters map[string][]types.SubscriptionFilter

	describeGroupCalls  int
	describeFilterCalls int
	createdGroups       []string
	putFilters          []string
}

func newFakeLogsAPI(groups ...string) *fakeLogsAPI {
	return &fakeLogsAPI{groups: groups, filters: map[string][]types.SubscriptionFilter{}}
}

func (f *fakeLogsAPI) DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	f.describeGroupCalls++
	out := &cloudwatchlogs.DescribeLogGroupsOutput{}
	prefix := aws.ToString(params.LogGroupNamePrefix)
	for _, name := range f.groups {
		if strings.HasPrefix(name, prefix) {
			out.LogGroups = append(out.LogGroups, types.LogGroup{LogGroupName: aws.String(name)})
		}
	}
	return out, nil
}

func (f *fakeLogsAPI) DescribeSubscriptionFilters(ctx context.Context, params *cloudwatchlogs.DescribeSubscriptionFiltersInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeSubscriptionFiltersOutput, error) {
	f.describeFilterCalls++
	return &cloudwatchlogs.DescribeSubscriptionFiltersOutput{
		SubscriptionFilters: f.filters[aws.ToString(params.LogGroupName)],
	}, nil
}

func (f *fakeLogsAPI) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	name := aws.ToString(params.LogGroupName)
	for _, existing := range f.groups {
		if existing == name {
			return nil, &types.ResourceAlreadyExistsException{}
		}
	}
	f.createdGroups = append(f.createdGroups, name)
	f.groups = append(f.groups, name)
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogsAPI) PutSubscriptionFilter(ctx context.Context, params *cloudwatchlogs.PutSubscriptionFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutSubscriptionFilterOutput, error) {
	name := aws.ToString(params.LogGroupName)
	f.putFilters = append(f.putFilters, name)
	f.filters[name] = append(f.filters[name], types.SubscriptionFilter{
		FilterName:     params.FilterName,
		DestinationArn: params.DestinationArn,
		LogGroupName:   params.LogGroupName,
	})
	return &cloudwatchlogs.PutSubscriptionFilterOutput{}, nil
}

func (f *fakeLogsAPI) mutations() int {
	return len(f.createdGroups) + len(f.putFilters)
}

func functionResources(props map[string]any) map[string]any {
	return map[string]any{
		"OrdersFunction": map[string]any{
			"Type":       "AWS::Lambda::Function",
			"Properties": props,
		},
	}
}

func TestReconcile_NewExplicitlyNamedFunction(t *testing.T) {
	fake := newFakeLogsAPI()
	g := graph.Build(functionResources(map[string]any{"FunctionName": "orders-fn"}))

	r := New(fake, forwarderARN, "", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))

	assert.Equal(t, []string{"/aws/lambda/orders-fn"}, fake.createdGroups)
	assert.Equal(t, []string{"/aws/lambda/orders-fn"}, fake.putFilters)
	require.Len(t, fake.filters["/aws/lambda/orders-fn"], 1)
	filter := fake.filters["/aws/lambda/orders-fn"][0]
	assert.Equal(t, FilterName, aws.ToString(filter.FilterName))
	assert.Equal(t, forwarderARN, aws.ToString(filter.DestinationArn))
}

func TestReconcile_DynamicNameWithoutStackNameAbortsBeforeAPICalls(t *testing.T) {
	fake := newFakeLogsAPI()
	g := graph.Build(functionResources(map[string]any{"Runtime": "nodejs20.x"}))

	r := New(fake, forwarderARN, "", 0)
	err := r.Reconcile(context.Background(), g)

	var missing *MissingFunctionNameError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"OrdersFunction"}, missing.FunctionKeys)
	assert.Zero(t, fake.describeGroupCalls)
	assert.Zero(t, fake.mutations())
}

func TestReconcile_MissingStackNameCollectedAcrossFunctions(t *testing.T) {
	resources := functionResources(map[string]any{})
	resources["PaymentsFunction"] = map[string]any{
		"Type":       "AWS::Lambda::Function",
		"Properties": map[string]any{},
	}
	g := graph.Build(resources)

	r := New(newFakeLogsAPI(), forwarderARN, "", 0)
	err := r.Reconcile(context.Background(), g)

	var missing *MissingFunctionNameError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"OrdersFunction", "PaymentsFunction"}, missing.FunctionKeys)
}

func TestReconcile_LiveGroupGetsSubscribed(t *testing.T) {
	fake := newFakeLogsAPI("/aws/lambda/orders-fn")
	g := graph.Build(functionResources(map[string]any{"FunctionName": "orders-fn"}))

	r := New(fake, forwarderARN, "", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))

	assert.Empty(t, fake.createdGroups)
	assert.Equal(t, []string{"/aws/lambda/orders-fn"}, fake.putFilters)
}

func TestReconcile_ExistingFilterIsNoop(t *testing.T) {
	fake := newFakeLogsAPI("/aws/lambda/orders-fn")
	fake.filters["/aws/lambda/orders-fn"] = []types.SubscriptionFilter{
		{FilterName: aws.String(FilterName)},
	}
	g := graph.Build(functionResources(map[string]any{"FunctionName": "orders-fn"}))

	r := New(fake, forwarderARN, "", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))
	assert.Zero(t, fake.mutations())
}

func TestReconcile_FilterCapReachedIsNoop(t *testing.T) {
	fake := newFakeLogsAPI("/aws/lambda/orders-fn")
	fake.filters["/aws/lambda/orders-fn"] = []types.SubscriptionFilter{
		{FilterName: aws.String("first-party")},
		{FilterName: aws.String("third-party")},
	}
	g := graph.Build(functionResources(map[string]any{"FunctionName": "orders-fn"}))

	r := New(fake, forwarderARN, "", DefaultMaxSubscriptions)
	require.NoError(t, r.Reconcile(context.Background(), g))
	assert.Zero(t, fake.mutations())
}

func TestReconcile_DynamicNameMatchedThroughStackListing(t *testing.T) {
	fake := newFakeLogsAPI(
		"/aws/lambda/my-stack-OrdersFunction-A1B2C3",
		"/aws/lambda/my-stack-Unrelated-X9Y8Z7",
	)
	g := graph.Build(functionResources(map[string]any{"Runtime": "nodejs20.x"}))

	r := New(fake, forwarderARN, "my-stack", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))

	assert.Equal(t, []string{"/aws/lambda/my-stack-OrdersFunction-A1B2C3"}, fake.putFilters)
}

func TestReconcile_StackListingIsCachedAcrossFunctions(t *testing.T) {
	fake := newFakeLogsAPI(
		"/aws/lambda/my-stack-OrdersFunction-A1B2C3",
		"/aws/lambda/my-stack-PaymentsFunction-D4E5F6",
	)
	resources := functionResources(map[string]any{})
	resources["PaymentsFunction"] = map[string]any{
		"Type":       "AWS::Lambda::Function",
		"Properties": map[string]any{},
	}
	g := graph.Build(resources)

	r := New(fake, forwarderARN, "my-stack", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))

	// One listing amortized across both dynamically named functions.
	assert.Equal(t, 1, fake.describeGroupCalls)
	assert.Len(t, fake.putFilters, 2)
}

func TestReconcile_DeclaredGroupWithDeclaredFilterIsRespected(t *testing.T) {
	fake := newFakeLogsAPI()
	resources := functionResources(map[string]any{"FunctionName": "orders-fn"})
	resources["OrdersLogGroup"] = map[string]any{
		"Type": "AWS::Logs::LogGroup",
		"Properties": map[string]any{
			"LogGroupName": map[string]any{"Fn::Sub": "/aws/lambda/${OrdersFunction}"},
		},
	}
	resources["OrdersSubscription"] = map[string]any{
		"Type": "AWS::Logs::SubscriptionFilter",
		"Properties": map[string]any{
			"LogGroupName":   map[string]any{"Ref": "OrdersLogGroup"},
			"DestinationArn": forwarderARN,
		},
	}
	g := graph.Build(resources)

	r := New(fake, forwarderARN, "", 0)
	require.NoError(t, r.Reconcile(context.Background(), g))
	assert.Zero(t, fake.mutations())
}

func TestReconcile_DeclaredGroupWithoutFilterIsFatal(t *testing.T) {
	fake := newFakeLogsAPI()
	resources := functionResources(map[string]any{"FunctionName": "orders-fn"})
	resources["OrdersLogGroup"] = map[string]any{
		"Type": "AWS::Logs::LogGroup",
		"Properties": map[string]any{
			"LogGroupName": map[string]any{
				"Fn::Join": []any{"", []any{"/aws/lambda/", map[string]any{"Ref": "OrdersFunction"}}},
			},
		},
	}
	g := graph.Build(resources)

	r := New(fake, forwarderARN, "", 0)
	err := r.Reconcile(context.Background(), g)

	var missing *MissingSubDeclarationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "OrdersFunction", missing.FunctionKey)
	assert.Equal(t, "OrdersLogGroup", missing.LogGroupKey)
	assert.Zero(t, fake.mutations())
}

func TestReconcile_Idempotent(t *testing.T) {
	fake := newFakeLogsAPI()
	g := graph.Build(functionResources(map[string]any{"FunctionName": "orders-fn"}))

	require.NoError(t, New(fake, forwarderARN, "", 0).Reconcile(context.Background(), g))
	require.Len(t, fake.putFilters, 1)

	// Second pass against the state the first pass produced: no mutations.
	require.NoError(t, New(fake, forwarderARN, "", 0).Reconcile(context.Background(), g))
	assert.Len(t, fake.putFilters, 1)
	assert.Len(t, fake.createdGroups, 1)
}
