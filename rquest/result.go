package rquest

import "encoding/base64"

// File is a result attachment, payload base64-encoded.
type File struct {
	Data        string  `json:"file_data"`
	Description string  `json:"file_description"`
	Name        string  `json:"file_name"`
	Reference   string  `json:"file_reference"`
	Sensitive   bool    `json:"file_sensitive"`
	Size        float64 `json:"file_size"`
	Type        string  `json:"file_type"`
}

// NewFile base64-encodes raw and records its encoded size in kilobytes.
func NewFile(name, description string, raw []byte) File {
	encoded := base64.StdEncoding.EncodeToString(raw)
	return File{
		Data:        encoded,
		Description: description,
		Name:        name,
		Sensitive:   true,
		Size:        float64(len(encoded)) / 1000,
		Type:        "BCOS",
	}
}

// QueryResult is the nested count block of a submitted result.
type QueryResult struct {
	Count        int64  `json:"count"`
	DatasetCount int    `json:"datasetCount"`
	Files        []File `json:"files"`
}

// Result is the terminal artifact submitted back to the task API.
type Result struct {
	Status          string      `json:"status"`
	ProtocolVersion string      `json:"protocolVersion"`
	UUID            string      `json:"uuid"`
	QueryResult     QueryResult `json:"queryResult"`
	Message         string      `json:"message"`
	CollectionID    string      `json:"collection_id"`
}

// NewResult builds a successful result envelope.
func NewResult(uuid, collection string, count int64, files []File) Result {
	datasets := 0
	if len(files) > 0 {
		datasets = 1
	}
	if files == nil {
		files = []File{}
	}
	return Result{
		Status:          "ok",
		ProtocolVersion: "v2",
		UUID:            uuid,
		QueryResult:     QueryResult{Count: count, DatasetCount: datasets, Files: files},
		CollectionID:    collection,
	}
}

// NewErrorResult builds a failure result envelope. The message is operator
// facing; counts are zeroed.
func NewErrorResult(uuid, collection, message string) Result {
	return Result{
		Status:          "error",
		ProtocolVersion: "v2",
		UUID:            uuid,
		QueryResult:     QueryResult{Files: []File{}},
		Message:         message,
		CollectionID:    collection,
	}
}
