package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sns.PublishOutput{}, m.err
}

type mockSQS struct {
	inputs []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sqs.SendMessageOutput{}, nil
}

type mockSecrets struct {
	calls int
	value *string
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: m.value}, nil
}

type mockMetrics struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockMetrics) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type mockLogs struct {
	groupErr error
	streams  int
	events   int
}

func (m *mockLogs) CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, m.groupErr
}

func (m *mockLogs) PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (m *mockLogs) CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	m.streams++
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (m *mockLogs) PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	m.events += len(in.LogEvents)
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: sdkaws.String("next")}, nil
}

func TestSNSClient_Publish(t *testing.T) {
	api := &mockSNS{}
	client := NewSNSClientWithAPI(api)

	err := client.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:payments", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, `{"a":1}`, *api.inputs[0].Message)

	assert.Error(t, client.Publish(context.Background(), "", []byte("x")))

	api.err = errors.New("throttled")
	err = client.Publish(context.Background(), "arn", []byte("x"))
	assert.ErrorContains(t, err, "throttled")
}

func TestSQSSender_SendMessageSetsEventType(t *testing.T) {
	api := &mockSQS{}
	sender := NewSQSSenderWithAPI(api, "http://localhost:4566/000000000000/payment-events")

	require.NoError(t, sender.SendMessage(context.Background(), "body", "payment_succeeded"))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "payment_succeeded", *api.inputs[0].MessageAttributes["event_type"].StringValue)

	assert.Error(t, NewSQSSenderWithAPI(api, "").SendMessage(context.Background(), "body", ""))
}

func TestSecretsClient_Caches(t *testing.T) {
	api := &mockSecrets{value: sdkaws.String("sk_test_123")}
	client := NewSecretsClientWithAPI(api)

	for i := 0; i < 3; i++ {
		v, err := client.GetSecret(context.Background(), "payments/STRIPE_API_KEY")
		require.NoError(t, err)
		assert.Equal(t, "sk_test_123", v)
	}
	assert.Equal(t, 1, api.calls)
}

func TestSecretsClient_NoStringValue(t *testing.T) {
	client := NewSecretsClientWithAPI(&mockSecrets{})
	_, err := client.GetSecret(context.Background(), "payments/JWT_SECRET")
	assert.Error(t, err)
}

func TestMetricsClient_DisabledSendsNothing(t *testing.T) {
	api := &mockMetrics{}
	m := NewMetricsClientWithAPI(api, "", false)

	require.NoError(t, m.RecordCount(context.Background(), MetricPaymentSucceeded, nil))
	assert.Empty(t, api.inputs)
	assert.False(t, m.IsEnabled())

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricPaymentFailed, nil))
}

func TestMetricsClient_Enabled(t *testing.T) {
	api := &mockMetrics{}
	m := NewMetricsClientWithAPI(api, "", true)

	require.NoError(t, m.RecordCount(context.Background(), MetricPaymentRefunded, map[string]string{"Service": "payment"}))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "FitnessApp", *api.inputs[0].Namespace)
	assert.Equal(t, MetricPaymentRefunded, *api.inputs[0].MetricData[0].MetricName)
	assert.Len(t, api.inputs[0].MetricData[0].Dimensions, 1)
}

func TestCloudWatchLogsClient_Write(t *testing.T) {
	api := &mockLogs{groupErr: &logtypes.ResourceAlreadyExistsException{}}
	cw, err := newCloudWatchLogsClient(context.Background(), api, "payment-service", "", true)
	require.NoError(t, err)
	assert.Equal(t, 1, api.streams)

	n, err := cw.Write([]byte("line"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, api.events)
}

func TestCloudWatchLogsClient_DisabledIsSilent(t *testing.T) {
	api := &mockLogs{}
	cw, err := newCloudWatchLogsClient(context.Background(), api, "payment-service", "", false)
	require.NoError(t, err)

	_, err = cw.Write([]byte("line"))
	require.NoError(t, err)
	assert.Zero(t, api.streams)
	assert.Zero(t, api.events)
}
