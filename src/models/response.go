package models

import "time"

// DataType tags the payload carried in a response data item.
type DataType int

const (
	DataTypeStatus  DataType = 1
	DataTypeSymbols DataType = 2
	DataTypeOHLC    DataType = 3
	DataTypeTick    DataType = 4
	DataTypeInfo    DataType = 5
)

var dataTypeNames = map[DataType]string{
	DataTypeStatus:  "STATUS",
	DataTypeSymbols: "SYMBOLS",
	DataTypeOHLC:    "OHLC",
	DataTypeTick:    "TICK",
	DataTypeInfo:    "INFO",
}

func (d DataType) String() string {
	return dataTypeNames[d]
}

// -----------------------------------------------------------------------------

// MResponse is the envelope returned by every control endpoint.
type MResponse struct {
	Success      bool            `json:"success"`
	StatusCode   StatusCode      `json:"status_code"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Data         []MResponseData `json:"data"`
}

// MResponseData is one typed item of MResponse.Data.
type MResponseData struct {
	DataType DataType               `json:"data_type"`
	ID       int                    `json:"id"`
	Type     string                 `json:"type"`
	Systime  time.Time              `json:"systime"`
	Metadata map[string]interface{} `json:"metadata"`
	Data     interface{}            `json:"data"`
}

// -----------------------------------------------------------------------------

// NewResponse builds an envelope for code with success and status derived from it.
func NewResponse(code StatusCode, data ...MResponseData) MResponse {
	if data == nil {
		data = []MResponseData{}
	}
	return MResponse{
		Success:    code.IsSuccess(),
		StatusCode: code,
		Status:     code.String(),
		Data:       data,
	}
}

// -----------------------------------------------------------------------------

// NewResponseData stamps a data item with its type id, name and the local system time.
func NewResponseData(dt DataType, loc *time.Location, metadata map[string]interface{}, data interface{}) MResponseData {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return MResponseData{
		DataType: dt,
		ID:       int(dt),
		Type:     dt.String(),
		Systime:  time.Now().In(loc),
		Metadata: metadata,
		Data:     data,
	}
}
