package script

import (
	"encoding/json"

	"github.com/unalkalkan/podcaster/internal/llm"
)

// Structured output of the single-shot and segmented strategies
var podcastSchema = &llm.ResponseSchema{
	Name:        "podcast",
	Description: "An AI generated podcast script.",
	Strict:      true,
	Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "config": {
      "type": "object",
      "properties": {
        "language": {"type": "string", "description": "Language code + locale (BCP-47), e.g. en-US or es-PA"}
      },
      "required": ["language"],
      "additionalProperties": false
    },
    "script": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "speaker": {"type": "string", "enum": ["speaker_1", "speaker_2"], "description": "Speaker key, never the full name"},
          "message": {"type": "string"}
        },
        "required": ["speaker", "message"],
        "additionalProperties": false
      }
    }
  },
  "required": ["config", "script"],
  "additionalProperties": false
}`),
}

// ReAct tool names
const (
	toolAnalyze  = "analyze_document"
	toolPlan     = "plan_podcast"
	toolHosts    = "define_hosts"
	toolSection  = "generate_section"
	toolReview   = "review_script"
	toolFinalize = "finalize_script"
)

var analyzeTool = llm.Tool{
	Name:        toolAnalyze,
	Description: "Record the analysis of the source document",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "key_points": {"type": "array", "items": {"type": "string"}},
    "themes": {"type": "array", "items": {"type": "string"}},
    "audience_takeaways": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["reasoning", "key_points", "themes", "audience_takeaways"]
}`),
}

var planTool = llm.Tool{
	Name:        toolPlan,
	Description: "Record the section plan of the episode",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "duration": {"type": "number", "description": "Minutes"},
          "description": {"type": "string"}
        },
        "required": ["title", "duration", "description"]
      }
    },
    "total_duration": {"type": "number", "description": "Minutes"}
  },
  "required": ["reasoning", "sections", "total_duration"]
}`),
}

var hostsTool = llm.Tool{
	Name:        toolHosts,
	Description: "Record the personas of both hosts",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "host_1": {"$ref": "#/$defs/host"},
    "host_2": {"$ref": "#/$defs/host"}
  },
  "required": ["reasoning", "host_1", "host_2"],
  "$defs": {
    "host": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "personality": {"type": "string"},
        "role": {"type": "string"}
      },
      "required": ["name", "personality", "role"]
    }
  }
}`),
}

var sectionTool = llm.Tool{
	Name:        toolSection,
	Description: "Record the dialogue of one section",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "section_title": {"type": "string"},
    "dialogue": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "speaker": {"type": "string", "description": "Host name"},
          "text": {"type": "string"}
        },
        "required": ["speaker", "text"]
      }
    }
  },
  "required": ["reasoning", "section_title", "dialogue"]
}`),
}

var reviewTool = llm.Tool{
	Name:        toolReview,
	Description: "Record the review of the dialogue",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "improvements": {"type": "array", "items": {"type": "string"}},
    "dialogue_revisions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "original": {"type": "string"},
          "revised": {"type": "string"}
        },
        "required": ["original", "revised"]
      }
    }
  },
  "required": ["reasoning", "improvements"]
}`),
}

var finalizeTool = llm.Tool{
	Name:        toolFinalize,
	Description: "Record the final podcast script",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "config": {
      "type": "object",
      "properties": {
        "language": {"type": "string", "description": "BCP-47 language tag"}
      },
      "required": ["language"]
    },
    "script": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Host name"},
          "message": {"type": "string"}
        },
        "required": ["name", "message"]
      }
    }
  },
  "required": ["reasoning", "config", "script"]
}`),
}
