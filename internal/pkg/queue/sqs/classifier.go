package sqs

import (
	"errors"
	"net"

	"github.com/aws/smithy-go"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Both the JSON and the legacy query protocol codes are listed.
var errorKinds = map[string]queue.Kind{
	"ReceiptHandleIsInvalid":                      queue.KindInvalidHandle,
	"InvalidReceiptHandle":                        queue.KindInvalidHandle,
	"MessageNotInflight":                          queue.KindInvalidHandle,
	"AWS.SimpleQueueService.MessageNotInflight":   queue.KindInvalidHandle,
	"InvalidParameterValue":                       queue.KindInvalidArgument,
	"InvalidParameterValueException":              queue.KindInvalidArgument,
	"InvalidAttributeName":                        queue.KindInvalidArgument,
	"InvalidAttributeValue":                       queue.KindInvalidArgument,
	"InvalidMessageContents":                      queue.KindInvalidArgument,
	"InvalidAddress":                              queue.KindInvalidArgument,
	"InvalidSecurity":                             queue.KindPermissionDenied,
	"AccessDenied":                                queue.KindPermissionDenied,
	"AccessDeniedException":                       queue.KindPermissionDenied,
	"KmsAccessDenied":                             queue.KindPermissionDenied,
	"QueueDoesNotExist":                           queue.KindNotFound,
	"AWS.SimpleQueueService.NonExistentQueue":     queue.KindNotFound,
	"QueueDeletedRecently":                        queue.KindNotFound,
	"UnsupportedOperation":                        queue.KindUnsupported,
	"AWS.SimpleQueueService.UnsupportedOperation": queue.KindUnsupported,
	"RequestThrottled":                            queue.KindTransient,
	"ThrottlingException":                         queue.KindTransient,
	"OverLimit":                                   queue.KindTransient,
	"ServiceUnavailable":                          queue.KindTransient,
	"InternalError":                               queue.KindTransient,
	"InternalFailure":                             queue.KindTransient,
	"KmsThrottled":                                queue.KindTransient,
}

// Classifier maps SQS SDK errors to queue kinds.
var Classifier = queue.ClassifierFunc(classify)

func classify(err error) queue.Kind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := errorKinds[apiErr.ErrorCode()]; ok {
			return kind
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return queue.KindTransient
		}
		return queue.KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return queue.KindTransient
	}
	return queue.KindUnknown
}
