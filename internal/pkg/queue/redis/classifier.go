package redisQueue

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

var transientPrefixes = []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "READONLY"}

var permissionPrefixes = []string{"NOAUTH", "WRONGPASS", "NOPERM"}

// Classifier maps go-redis errors to queue kinds.
var Classifier = queue.ClassifierFunc(classify)

func classify(err error) queue.Kind {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		msg := redisErr.Error()
		for _, p := range transientPrefixes {
			if strings.HasPrefix(msg, p) {
				return queue.KindTransient
			}
		}
		for _, p := range permissionPrefixes {
			if strings.HasPrefix(msg, p) {
				return queue.KindPermissionDenied
			}
		}
		return queue.KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return queue.KindTransient
	}
	return queue.KindUnknown
}
