// Copyright 2026 The cvmquery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pqutil

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v16/parquet"
	pqschema "github.com/apache/arrow/go/v16/parquet/schema"
)

// LookupPrimitiveNode returns the top level leaf column with the given name.
func LookupPrimitiveNode(schema *pqschema.Schema, name string) (*pqschema.PrimitiveNode, bool) {
	root := schema.Root()
	index := root.FieldIndexByName(name)
	if index < 0 {
		return nil, false
	}
	primitive, ok := root.Field(index).(*pqschema.PrimitiveNode)
	return primitive, ok
}

// ParquetSchemaString renders the schema in the text form used by the parquet
// tools, one node per line.
func ParquetSchemaString(schema *pqschema.Schema) string {
	b := &strings.Builder{}
	b.WriteString("message {\n")
	root := schema.Root()
	for i := 0; i < root.NumFields(); i += 1 {
		writeNode(b, root.Field(i), 1)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeNode(b *strings.Builder, node pqschema.Node, level int) {
	indent := strings.Repeat("  ", level)
	suffix := ""
	if annotation := Annotation(node); annotation != "" {
		suffix = " (" + annotation + ")"
	}
	repetition := node.RepetitionType().String()

	switch n := node.(type) {
	case *pqschema.GroupNode:
		fmt.Fprintf(b, "%s%s group %s%s {\n", indent, repetition, n.Name(), suffix)
		for i := 0; i < n.NumFields(); i += 1 {
			writeNode(b, n.Field(i), level+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case *pqschema.PrimitiveNode:
		fmt.Fprintf(b, "%s%s %s %s%s;\n", indent, repetition, TypeName(n), n.Name(), suffix)
	default:
		fmt.Fprintf(b, "%sunknown node type: %v\n", indent, node)
	}
}

// Annotation describes the logical or converted type of a node, or returns
// an empty string when the node has neither.
func Annotation(node pqschema.Node) string {
	logicalType := node.LogicalType()
	if t, ok := logicalType.(*pqschema.IntLogicalType); ok {
		return fmt.Sprintf("INT (%d, %t)", t.BitWidth(), t.IsSigned())
	}

	switch logicalType.(type) {
	case nil, pqschema.UnknownLogicalType, pqschema.NoLogicalType:
	default:
		return strings.ToUpper(logicalType.String())
	}
	if converted := node.ConvertedType(); converted != pqschema.ConvertedTypes.None {
		return strings.ToUpper(converted.String())
	}
	return ""
}

// TypeName returns the lower case physical type of a leaf column.
func TypeName(node *pqschema.PrimitiveNode) string {
	switch physical := node.PhysicalType(); physical {
	case parquet.Types.ByteArray:
		return "binary"
	case parquet.Types.FixedLenByteArray:
		return fmt.Sprintf("fixed_len_byte_array (%d)", node.TypeLength())
	default:
		return strings.ToLower(physical.String())
	}
}
