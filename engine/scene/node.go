package scene

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

/**
 * @brief Node is an element of the scene graph. A node has at most one
 * parent, which it refers to without owning it, and owns its children: the
 * child list holds one reference on every child.
 *
 * The tree belongs to the main thread and is not safe for concurrent
 * mutation.
 */
type Node interface {
	core.Object

	ID() uint32
	Name() string
	SetName(name string)
	Parent() Node
	Children() []Node

	AddChild(child Node) error
	RemoveChild(child Node, cleanup bool) error
	RemoveAllChildren(cleanup bool)
	RemoveFromParent(cleanup bool) error
	GetChild(id uint32) Node
	GetChildByName(name string) Node
	Visit(fn func(Node) bool)

	IsVisible() bool
	SetVisible(visible bool)
	IsDirty() bool
	SetDirty(dirty, recursive bool)

	// Clone returns a deep copy: properties and the whole subtree, with fresh
	// IDs and no parent.
	Clone() (Node, error)

	OnAttachParent(parent Node)
	OnDetachParent(parent Node)

	node() *NodeBase
}

// NodeSettings are the plain properties of a node, copied on clone.
type NodeSettings struct {
	Name     string
	Visible  bool
	UserData map[string]string
}

/**
 * @brief NodeBase implements Node and is embedded by every node type. The
 * embedding type must call initNode with itself so the tree links the outer
 * value, not the embedded base.
 */
type NodeBase struct {
	core.RefCounted
	NodeSettings

	id       uint32
	self     Node
	parent   Node
	children []Node
	dirty    bool
}

func (n *NodeBase) initNode(self Node, name string, destroy func()) {
	n.id = core.GenerateID()
	n.self = self
	n.NodeSettings.Name = name
	n.Visible = true
	n.dirty = true
	n.Init(func() {
		n.RemoveAllChildren(false)
		if destroy != nil {
			destroy()
		}
	})
}

func (n *NodeBase) node() *NodeBase { return n }
func (n *NodeBase) ID() uint32      { return n.id }
func (n *NodeBase) Name() string    { return n.NodeSettings.Name }
func (n *NodeBase) Parent() Node    { return n.parent }

func (n *NodeBase) SetName(name string) {
	n.NodeSettings.Name = name
}

// Children returns a copy of the child list.
func (n *NodeBase) Children() []Node {
	return append([]Node(nil), n.children...)
}

func (n *NodeBase) IsVisible() bool {
	return n.Visible
}

func (n *NodeBase) SetVisible(visible bool) {
	n.Visible = visible
}

func (n *NodeBase) IsDirty() bool {
	return n.dirty
}

func (n *NodeBase) SetDirty(dirty, recursive bool) {
	n.dirty = dirty
	if !recursive {
		return
	}
	for _, c := range n.children {
		c.SetDirty(dirty, true)
	}
}

/**
 * @brief Appends child and takes a reference on it. Fails, leaving both
 * trees untouched, when child already has a parent or is an ancestor of n.
 */
func (n *NodeBase) AddChild(child Node) error {
	if child == nil {
		return fmt.Errorf("add child: %w", core.ErrNilArgument)
	}
	cb := child.node()
	if cb.parent != nil {
		return fmt.Errorf("add child %q to %q: %w", child.Name(), n.Name(), core.ErrAlreadyHasParent)
	}
	for p := Node(n.self); p != nil; p = p.Parent() {
		if p.ID() == child.ID() {
			return fmt.Errorf("add child %q to its own subtree: %w", child.Name(), core.ErrInvariantViolation)
		}
	}
	child.Retain()
	cb.parent = n.self
	n.children = append(n.children, child)
	child.SetDirty(true, true)
	child.OnAttachParent(n.self)
	return nil
}

func (n *NodeBase) indexOf(child Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *NodeBase) detach(i int, cleanup bool) {
	child := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	if cleanup {
		child.RemoveAllChildren(true)
	}
	child.node().parent = nil
	child.OnDetachParent(n.self)
	child.Release()
}

/**
 * @brief Unlinks child and drops the reference the child list held. With
 * cleanup the child's whole subtree is torn down first. Without it the
 * subtree survives only if the caller holds its own reference on child.
 */
func (n *NodeBase) RemoveChild(child Node, cleanup bool) error {
	if child == nil {
		return fmt.Errorf("remove child: %w", core.ErrNilArgument)
	}
	i := n.indexOf(child)
	if i < 0 {
		return fmt.Errorf("remove %q from %q: %w", child.Name(), n.Name(), core.ErrNotAChild)
	}
	n.detach(i, cleanup)
	return nil
}

func (n *NodeBase) RemoveAllChildren(cleanup bool) {
	for len(n.children) > 0 {
		n.detach(len(n.children)-1, cleanup)
	}
}

func (n *NodeBase) RemoveFromParent(cleanup bool) error {
	if n.parent == nil {
		return nil
	}
	return n.parent.RemoveChild(n.self, cleanup)
}

// GetChild returns the first direct child with the given id.
func (n *NodeBase) GetChild(id uint32) Node {
	for _, c := range n.children {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// GetChildByName returns the first direct child, in child order, with the
// given name.
func (n *NodeBase) GetChildByName(name string) Node {
	for _, c := range n.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Visit walks the subtree depth first, parents before children. Returning
// false from fn skips the children of that node.
func (n *NodeBase) Visit(fn func(Node) bool) {
	if !fn(n.self) {
		return
	}
	for _, c := range n.Children() {
		c.Visit(fn)
	}
}

func (n *NodeBase) OnAttachParent(parent Node) {}
func (n *NodeBase) OnDetachParent(parent Node) {}

/**
 * @brief Copies the settings of src into n. Settings structs are deep
 * copied, so slices and maps are never shared between a node and its clone.
 */
func (n *NodeBase) cloneProperties(src *NodeBase) error {
	if err := copySettings(&n.NodeSettings, &src.NodeSettings); err != nil {
		return fmt.Errorf("clone %q: %w", src.NodeSettings.Name, err)
	}
	return nil
}

// cloneChildren attaches a clone of every child of src to n.
func (n *NodeBase) cloneChildren(src *NodeBase) error {
	for _, c := range src.children {
		cc, err := c.Clone()
		if err != nil {
			return err
		}
		err = n.AddChild(cc)
		cc.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// copySettings deep copies one settings struct into another.
func copySettings[T any](dst, src *T) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("%w: %w", core.ErrCloneFailed, err)
	}
	return nil
}
