package relay

import (
	"io"
	"time"

	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Component is one third of a bundle: the id, text and creation time of
// a user (text = name), conversation (text = title) or message
// (text = content).
type Component struct {
	ID   ident.Uuid
	Text string
	Time time.Time
}

// Pack builds a component from its parts.
func Pack(id ident.Uuid, text string, at time.Time) Component {
	return Component{ID: id, Text: text, Time: at}
}

// Bundle is the minimal replication unit. It carries no ownership or
// chain edges; the receiving server reconstructs those locally.
type Bundle struct {
	ID           ident.Uuid
	User         Component
	Conversation Component
	Message      Component
}

// ComponentSerializer carries one component on the relay wire.
var ComponentSerializer codec.Serializer[Component] = componentSerializer{}

type componentSerializer struct{}

func (componentSerializer) Write(w io.Writer, value Component) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.String.Write(w, value.Text); err != nil {
		return err
	}
	return codec.Time.Write(w, value.Time)
}

func (componentSerializer) Read(r io.Reader) (Component, error) {
	var c Component
	var err error
	if c.ID, err = codec.Uuid.Read(r); err != nil {
		return Component{}, err
	}
	if c.Text, err = codec.String.Read(r); err != nil {
		return Component{}, err
	}
	if c.Time, err = codec.Time.Read(r); err != nil {
		return Component{}, err
	}
	return c, nil
}

// BundleSerializer carries a full bundle on the relay wire.
var BundleSerializer codec.Serializer[Bundle] = bundleSerializer{}

type bundleSerializer struct{}

func (bundleSerializer) Write(w io.Writer, value Bundle) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := ComponentSerializer.Write(w, value.User); err != nil {
		return err
	}
	if err := ComponentSerializer.Write(w, value.Conversation); err != nil {
		return err
	}
	return ComponentSerializer.Write(w, value.Message)
}

func (bundleSerializer) Read(r io.Reader) (Bundle, error) {
	var b Bundle
	var err error
	if b.ID, err = codec.Uuid.Read(r); err != nil {
		return Bundle{}, err
	}
	if b.User, err = ComponentSerializer.Read(r); err != nil {
		return Bundle{}, err
	}
	if b.Conversation, err = ComponentSerializer.Read(r); err != nil {
		return Bundle{}, err
	}
	if b.Message, err = ComponentSerializer.Read(r); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
