package config

// DefaultConfigYAML contains the default configuration YAML content.
// `agentmesh config init` writes it; the loader defaults must stay in sync.
const DefaultConfigYAML = `# AgentMesh configuration
#
# Precedence: flags > AGENTMESH_* environment > .agentmesh.yaml
# > ~/.config/agentmesh/config.yaml > built-in defaults.

log:
  level: info       # debug, info, warn, error
  format: auto      # auto, text, json
  # file: .agentmesh/agentmesh.log

server:
  host: localhost
  port: 8080
  cors: true

# Where agent activity comes from.
#   simulate:  built-in scripted scenarios (search, coding, failing) or a YAML file
#   websocket: a remote backend speaking the task/process protocol
backend:
  mode: simulate
  url: ws://localhost:8000/api/v1/task/process
  scenario: search
  step_delay: 500ms

session:
  # What happens to a running task when a new request is submitted:
  # fail, complete, reject, concurrent
  on_new_submission: fail
  title_length: 50

store:
  enabled: true
  path: .agentmesh/history.db
  # retention: 720h

tui:
  state_dir: .agentmesh
  show_tasks: false

events:
  buffer_size: 100
`
