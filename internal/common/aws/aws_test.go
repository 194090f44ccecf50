package aws

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockEmailAPI struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockEmailAPI) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSMSAPI struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSMSAPI) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestSESClient_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	client := NewSESClientWithAPI(&MockEmailAPI{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: awssdk.String("msg-1")}, nil
		},
	}, "hiring@example.com")

	id, err := client.Send(context.Background(), "ada@example.com", "Hello", "Body")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, []string{"ada@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "hiring@example.com", awssdk.ToString(captured.Source))
	assert.Equal(t, "Hello", awssdk.ToString(captured.Message.Subject.Data))
}

func TestSNSClient_Send(t *testing.T) {
	var captured *sns.PublishInput
	client := NewSNSClientWithAPI(&MockSMSAPI{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: awssdk.String("sms-1")}, nil
		},
	}, "HIRING")

	id, err := client.Send(context.Background(), "+15550100", "Offer ready")
	require.NoError(t, err)
	assert.Equal(t, "sms-1", id)
	assert.Equal(t, "+15550100", awssdk.ToString(captured.PhoneNumber))
	assert.Equal(t, "HIRING", awssdk.ToString(captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSClient_SendError(t *testing.T) {
	client := NewSNSClientWithAPI(&MockSMSAPI{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, fmt.Errorf("throttled")
		},
	}, "")

	_, err := client.Send(context.Background(), "+15550100", "x")
	assert.EqualError(t, err, "throttled")
}
