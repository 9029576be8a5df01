package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/curiopass/support-agent/internal/agent/graph/conversations"
	"github.com/curiopass/support-agent/internal/agent/graph/nodes"
	"github.com/curiopass/support-agent/internal/agent/graph/observers"
	"github.com/curiopass/support-agent/internal/agent/llm"
	"github.com/curiopass/support-agent/internal/agent/model"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the support graph end-to-end.
type Config struct {
	Classifier       llm.Completer
	Operations       nodes.OperationsExecutor
	Knowledge        nodes.KnowledgeResolver
	Escalation       nodes.Escalator
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
}

// GraphBuilder handles the construction of the support turn graph.
type GraphBuilder struct {
	config *Config
	tm     *conversations.TurnManager
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}

// BuildSupportGraph validates the config, composes the graph and returns a Runner.
//
// One turn flows linearly: the context loader pulls conversation state, the
// classifier resolves an intent, a branch dispatches to exactly one handler,
// failed or unresolvable handling feeds the escalation node, and the responder
// emits the final message and persists the turn.
func BuildSupportGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if cfg.Operations == nil || cfg.Knowledge == nil || cfg.Escalation == nil {
		return nil, fmt.Errorf("handlers are not properly initialized")
	}
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	builder := &GraphBuilder{
		config: &cfg,
		tm:     conversations.NewTurnManager(cfg.ConversationRepo, cfg.Conversation),
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Support graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeContextLoader,
		nodes.NewContextLoaderNode(b.tm),
		compose.WithStatePreHandler(nodes.NewContextLoaderPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeIntentClassifier,
		nodes.NewClassifierNode(b.config.Classifier, b.tm),
		compose.WithStatePostHandler(nodes.NewClassifierPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeMemberOps,
		nodes.NewMemberOpsNode(b.config.Operations),
	)

	b.graph.AddLambdaNode(nodes.NodeKnowledge,
		nodes.NewKnowledgeNode(b.config.Knowledge),
	)

	b.graph.AddLambdaNode(nodes.NodeEscalation,
		nodes.NewEscalationNode(b.config.Escalation, b.tm),
	)

	b.graph.AddLambdaNode(nodes.NodeResponder,
		nodes.NewResponderNode(),
		compose.WithStatePostHandler(nodes.NewResponderPostHandler(b.tm)),
	)
}

// addEdges creates the unconditional flow connections between nodes.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeContextLoader},
		{nodes.NodeContextLoader, nodes.NodeIntentClassifier},
		{nodes.NodeEscalation, nodes.NodeResponder},
		{nodes.NodeResponder, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional routing branches.
func (b *GraphBuilder) addBranches() error {
	intentBranch := compose.NewGraphBranch(
		nodes.NewIntentCondition(),
		map[string]bool{
			nodes.NodeMemberOps:  true,
			nodes.NodeKnowledge:  true,
			nodes.NodeEscalation: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentClassifier, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	opsOutcome := compose.NewGraphBranch(
		nodes.NewDispatchCondition(),
		map[string]bool{
			nodes.NodeEscalation: true,
			nodes.NodeResponder:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeMemberOps, opsOutcome); err != nil {
		logx.Error().Err(err).Msg("Error adding operations outcome branch")
		return fmt.Errorf("error adding operations outcome branch: %w", err)
	}

	knowledgeOutcome := compose.NewGraphBranch(
		nodes.NewDispatchCondition(),
		map[string]bool{
			nodes.NodeEscalation: true,
			nodes.NodeResponder:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeKnowledge, knowledgeOutcome); err != nil {
		logx.Error().Err(err).Msg("Error adding knowledge outcome branch")
		return fmt.Errorf("error adding knowledge outcome branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// A turn visits at most six nodes; the cap guards against routing bugs.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(12))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
