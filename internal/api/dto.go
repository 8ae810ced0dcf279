package api

// CreateTaskRequest — запрос на постановку задачи в очередь.
type CreateTaskRequest struct {
	Task   string         `json:"task"`
	Params map[string]any `json:"params,omitempty"`
	Queue  string         `json:"queue,omitempty"`
}

// TaskAcceptedResponse — ответ о принятой задаче.
type TaskAcceptedResponse struct {
	Task  string `json:"task"`
	Queue string `json:"queue"`
}
