package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared across spans and metrics.
var (
	AttrRoom         = attribute.Key("room.id")
	AttrStatus       = attribute.Key("status")
	AttrStoreBackend = attribute.Key("store.backend")

	AttrAIRoute = attribute.Key("ai.route")

	AttrLLMModel     = attribute.Key("llm.model")
	AttrLLMProvider  = attribute.Key("llm.provider")
	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrToolCount    = attribute.Key("llm.tool_count")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")
)
