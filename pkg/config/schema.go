package config

const experimentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "episodes", "environment", "agents"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "episodes": {"type": "integer", "minimum": 1},
    "seed": {"type": ["integer", "null"]},
    "environment": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["door", "maze"]},
        "door": {
          "type": "object",
          "properties": {
            "reward": {"type": "number", "exclusiveMinimum": 0},
            "time_cost": {"type": "number", "maximum": 0},
            "illegal_penalty": {"type": "number", "maximum": 0},
            "max_episode_len": {"type": "integer", "minimum": 3}
          }
        },
        "maze": {
          "type": "object",
          "properties": {
            "grid_size": {"type": "integer", "minimum": 3, "maximum": 32},
            "goal_reward": {"type": "number", "exclusiveMinimum": 0},
            "trap_penalty": {"type": "number", "maximum": 0},
            "proximity_penalty": {"type": "number", "maximum": 0},
            "illegal_penalty": {"type": "number", "maximum": 0},
            "time_cost": {"type": "number", "maximum": 0},
            "max_episode_len": {"type": "integer", "minimum": 1},
            "trap_memory": {"type": "boolean"},
            "neighborhood": {"enum": [4, 8]}
          }
        }
      }
    },
    "agents": {
      "type": "object",
      "properties": {
        "primary": {"$ref": "#/definitions/agent"},
        "traveler": {"$ref": "#/definitions/agent"},
        "shared": {"type": "boolean"},
        "replay_past": {"type": "boolean"}
      }
    },
    "output": {
      "type": "object",
      "properties": {
        "results_db": {"type": "string"},
        "trajectory_path": {"type": "string"},
        "stream_addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "render": {"type": "boolean"},
        "every": {"type": "integer", "minimum": 0}
      }
    }
  },
  "definitions": {
    "agent": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"enum": ["q", "random", "scripted", "llm"]},
        "learning_rate": {"type": "number", "minimum": 0, "maximum": 1},
        "epsilon": {"type": "number", "minimum": 0, "maximum": 1},
        "deterministic": {"type": "boolean"},
        "script": {"type": ["array", "null"], "items": {"type": "string"}},
        "provider": {"enum": ["openai", "gemini", ""]},
        "model": {"type": "string"},
        "memory_size": {"type": "integer", "minimum": 0}
      }
    }
  }
}`
