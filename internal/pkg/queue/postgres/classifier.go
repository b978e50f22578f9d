package postgres

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Classifier maps pgx errors to queue kinds by SQLSTATE.
var Classifier = queue.ClassifierFunc(classify)

func classify(err error) queue.Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", pgErr.Code == "55P03":
			return queue.KindTransient
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"):
			return queue.KindTransient
		case pgErr.Code == "42501", strings.HasPrefix(pgErr.Code, "28"):
			return queue.KindPermissionDenied
		case pgErr.Code == "42P01":
			return queue.KindNotFound
		case strings.HasPrefix(pgErr.Code, "22"):
			return queue.KindInvalidArgument
		}
		return queue.KindUnknown
	}
	if pgconn.Timeout(err) {
		return queue.KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return queue.KindTransient
	}
	return queue.KindUnknown
}
