package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the observer handlers (model, prompt) into one
// callbacks.Handler attached at graph invocation.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}
