package bench

import "strings"

// Row is a benchmark kind; Key is the prefix of its benchmark names.
type Row struct {
	Name string `yaml:"name" json:"name"`
	Key  string `yaml:"key" json:"key"`
}

// Column is an implementation under test; Suffix completes a row key.
type Column struct {
	Name   string `yaml:"name" json:"name"`
	Suffix string `yaml:"suffix" json:"suffix"`
}

// Matrix fixes which composite keys appear in the table, and in what order.
type Matrix struct {
	Rows    []Row    `yaml:"rows" json:"rows"`
	Columns []Column `yaml:"columns" json:"columns"`
}

// DefaultMatrix is the comparison table published in the README.
func DefaultMatrix() Matrix {
	return Matrix{
		Rows: []Row{
			{Name: "Create empty", Key: "create_empty"},
			{Name: "Create with capacity", Key: "create_with_capacity"},
			{Name: "Push 100 elements", Key: "push_hundred_elements"},
			{Name: "With capacity push 100", Key: "create_with_capacity_and_push_hundred_elements"},
			{Name: "Lookup 100 elements", Key: "get_hundred_elements"},
			{Name: "Iterate over 100 elements", Key: "iterate_over_hundred_elements"},
			{Name: "Clone with 100 elements", Key: "clone_with_hundred_elements"},
			{Name: "Clone 100 and remove 10", Key: "clone_and_remove_ten_out_of_hundred_elements"},
			{Name: "Clone 100 and swap_remove 10", Key: "clone_and_swap_remove_ten_out_of_hundred_elements"},
		},
		Columns: []Column{
			{Name: "SparseSet<String>", Suffix: "_sparse_set"},
			{Name: "Vec<String>", Suffix: "_vec"},
			{Name: "HashMap<i32, String>", Suffix: "_hash_map"},
			{Name: "thunderdome::Arena<String>", Suffix: "_thunderdome_arena"},
			{Name: "generational_arena::Arena<String>", Suffix: "_generational_arena"},
			{Name: "slotmap::SlotMap<slotmap::DefaultKey, String>", Suffix: "_slot_map"},
			{Name: "slab::Slab<String>", Suffix: "_slab"},
		},
	}
}

// NotAvailable fills cells without a matching record.
const NotAvailable = "N/A"

// Cell formats the table cell for a composite key.
func Cell(records Records, key string) string {
	rec, ok := records[key]
	if !ok {
		return NotAvailable
	}
	return rec.Time + " ns ±" + rec.Error
}

// Render produces the markdown table for records laid out by m.
func Render(records Records, m Matrix) string {
	var sb strings.Builder

	header := make([]string, 0, len(m.Columns)+1)
	header = append(header, "Benchmark")
	for _, c := range m.Columns {
		header = append(header, "`"+c.Name+"`")
	}
	writeRow(&sb, header)

	rule := make([]string, len(header))
	for i := range rule {
		rule[i] = "---"
	}
	writeRow(&sb, rule)

	for _, r := range m.Rows {
		row := make([]string, 0, len(m.Columns)+1)
		row = append(row, r.Name)
		for _, c := range m.Columns {
			row = append(row, Cell(records, r.Key+c.Suffix))
		}
		writeRow(&sb, row)
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("| ")
	sb.WriteString(strings.Join(cells, " | "))
	sb.WriteString(" |\n")
}
