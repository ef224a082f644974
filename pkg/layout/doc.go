// Package layout repositions the subtree below a node.
//
// [Subtree] computes new positions for every node reachable from a root via
// outgoing edges, leaving the root itself in place. The algorithm runs in two
// passes over a spanning tree of the reachable nodes:
//
//  1. Bottom-up widths. A leaf is as wide as its node. An inner node is as
//     wide as the widest row of its children, where a row's width is the sum
//     of the children's subtree widths plus the gaps between them. Gaps are
//     [Options.SubtreeSpacing] when either neighbour has children of its own
//     and [Options.NodeSpacing] otherwise.
//  2. Top-down placement. Children are centered under their parent one level
//     below it. A node with [Options.PackThreshold] or more children, none of
//     which have children, packs them into rows of [Options.RowSize].
//     Intermediate nodes are re-centered over their direct children.
//
// Finally the whole subtree is shifted so the root's center sits over the
// midpoint of its direct children. Every returned coordinate is a multiple of
// [Options.Grid].
//
// The spanning tree is built with a visited set, so diamonds and the
// bidirectional pairs the graph model allows are laid out once, and
// [Options.MaxDepth] caps how deep the walk goes.
package layout
