package item

// Attachment is a binary resource embedded in a media file, usually cover art.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Node is one entry of a sub-item tree discovered inside a directory or
// playlist. Each Node owns one reference on its Item.
type Node struct {
	Item     *Item
	Children []*Node
}

// NewNode wraps it in a Node. The node takes over the caller's reference.
func NewNode(it *Item) *Node {
	return &Node{Item: it}
}

// Add appends a child and returns it.
func (n *Node) Add(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Len counts the nodes below n, excluding n itself.
func (n *Node) Len() int {
	total := 0
	for _, c := range n.Children {
		total += 1 + c.Len()
	}
	return total
}

// Walk calls fn for every node below n, depth first.
func (n *Node) Walk(fn func(depth int, child *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	for _, c := range n.Children {
		fn(depth, c)
		c.walk(depth+1, fn)
	}
}

// Release drops the reference held by every node in the tree, n included.
func (n *Node) Release() {
	if n == nil {
		return
	}
	for _, c := range n.Children {
		c.Release()
	}
	if n.Item != nil {
		n.Item.Release()
	}
}
