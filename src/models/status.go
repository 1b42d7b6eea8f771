package models

import "fmt"

// -----------------------------------------------------------------------------
// StatusCode is the closed set of outcomes reported by control operations.
// -----------------------------------------------------------------------------

type StatusCode int

const (
	StatusOK          StatusCode = 200
	StatusCreated     StatusCode = 201
	StatusAccepted    StatusCode = 202
	StatusNoContent   StatusCode = 204
	StatusNotModified StatusCode = 304

	StatusBadRequest       StatusCode = 400
	StatusUnauthorized     StatusCode = 401
	StatusForbidden        StatusCode = 403
	StatusNotFound         StatusCode = 404
	StatusMethodNotAllowed StatusCode = 405
	StatusConflict         StatusCode = 409

	StatusInternalServerError StatusCode = 500
	StatusNotImplemented      StatusCode = 501
	StatusBadGateway          StatusCode = 502
	StatusServiceUnavailable  StatusCode = 503

	StatusTaskIsRunning           StatusCode = 601
	StatusTaskNotFound            StatusCode = 602
	StatusRequestRejected         StatusCode = 603
	StatusSymbolAlreadySubscribed StatusCode = 604
	StatusSymbolNotSubscribed     StatusCode = 605
	StatusServiceNotRunning       StatusCode = 606
	StatusServiceIsRunning        StatusCode = 607
)

var statusNames = map[StatusCode]string{
	StatusOK:                      "OK",
	StatusCreated:                 "CREATED",
	StatusAccepted:                "ACCEPTED",
	StatusNoContent:               "NO_CONTENT",
	StatusNotModified:             "NOT_MODIFIED",
	StatusBadRequest:              "BAD_REQUEST",
	StatusUnauthorized:            "UNAUTHORIZED",
	StatusForbidden:               "FORBIDDEN",
	StatusNotFound:                "NOT_FOUND",
	StatusMethodNotAllowed:        "METHOD_NOT_ALLOWED",
	StatusConflict:                "CONFLICT",
	StatusInternalServerError:     "INTERNAL_SERVER_ERROR",
	StatusNotImplemented:          "NOT_IMPLEMENTED",
	StatusBadGateway:              "BAD_GATEWAY",
	StatusServiceUnavailable:      "SERVICE_UNAVAILABLE",
	StatusTaskIsRunning:           "TASK_IS_RUNNING",
	StatusTaskNotFound:            "TASK_NOT_FOUND",
	StatusRequestRejected:         "REQUEST_REJECTED",
	StatusSymbolAlreadySubscribed: "SYMBOL_ALREADY_SUBSCRIBED",
	StatusSymbolNotSubscribed:     "SYMBOL_NOT_SUBSCRIBED",
	StatusServiceNotRunning:       "SERVICE_NOT_RUNNING",
	StatusServiceIsRunning:        "SERVICE_IS_RUNNING",
}

// -----------------------------------------------------------------------------

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

// -----------------------------------------------------------------------------

// IsSuccess reports whether the code belongs to the 2xx family.
func (s StatusCode) IsSuccess() bool {
	return s >= 200 && s < 300
}

// -----------------------------------------------------------------------------

// IsRuntime reports whether the code is one of the 600-series domain codes.
func (s StatusCode) IsRuntime() bool {
	return s >= 600 && s < 700
}

// -----------------------------------------------------------------------------
// RtCode is the result code passed between the vendor layer and the runtimes.
// -----------------------------------------------------------------------------

type RtCode int

const (
	RtFail             RtCode = 0
	RtSuccess          RtCode = 1
	RtDataError        RtCode = 2
	RtEmptyData        RtCode = 3
	RtAPIError         RtCode = 4
	RtDatabaseError    RtCode = 5
	RtDuplicationError RtCode = 6
)

var rtNames = map[RtCode]string{
	RtFail:             "FAIL",
	RtSuccess:          "SUCCESS",
	RtDataError:        "DATA_ERROR",
	RtEmptyData:        "EMPTY_DATA",
	RtAPIError:         "API_ERROR",
	RtDatabaseError:    "DATABASE_ERROR",
	RtDuplicationError: "DUPLICATION_ERROR",
}

func (r RtCode) String() string {
	if name, ok := rtNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RT_%d", int(r))
}
