package commandstructure

// Command is one step of the image processing pipeline. Execute receives the
// encoded image and returns the encoded result, which may be the input itself
// when nothing had to change.
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// CommandFactory creates a command from its configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig names a registered command and carries its parameters
type CommandConfig struct {
	Name   string
	Params map[string]any
}
