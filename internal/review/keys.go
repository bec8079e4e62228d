package review

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Approve    key.Binding
	Skip       key.Binding
	ApproveAll key.Binding
	Back       key.Binding
	Help       key.Binding
	Done       key.Binding
	Cancel     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Skip, k.Back, k.Done, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Approve, k.Skip, k.ApproveAll},
		{k.Back, k.Done, k.Cancel, k.Help},
	}
}

var keys = keyMap{
	Approve: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y/enter", "merge group"),
	),
	Skip: key.NewBinding(
		key.WithKeys("n", "s", "right"),
		key.WithHelp("n/s", "skip group"),
	),
	ApproveAll: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "merge all remaining"),
	),
	Back: key.NewBinding(
		key.WithKeys("b", "left"),
		key.WithHelp("b", "previous group"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Done: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "finish"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "cancel, merge nothing"),
	),
}
