// Package sgbd implements a thin line-oriented REPL over db.Manager. It
// exists for manual exploration and is not exercised by the core
// storage tests.
package sgbd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/db"
	"github.com/malzahar/jindb/relation"
)

// SGBD is a single REPL session bound to one open database.
type SGBD struct {
	cfg *config.DBConfig
	dbm *db.Manager
}

// NewSGBD opens (creating if necessary) the database described by cfg.
func NewSGBD(cfg *config.DBConfig) (*SGBD, error) {
	dbm, err := db.Open(cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return &SGBD{cfg: cfg, dbm: dbm}, nil
}

// Run listens on stdin for commands until EXIT. No prompt is printed.
func (s *SGBD) Run() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			return s.dbm.Close()
		}
		if err := s.ProcessCommand(line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// ProcessCommand parses and executes a single command text, writing
// output to w.
func (s *SGBD) ProcessCommand(text string, w io.Writer) error {
	t := strings.TrimSpace(text)
	up := strings.ToUpper(t)
	switch {
	case strings.HasPrefix(up, "CREATE TABLE "):
		return s.ProcessCreateTableCommand(t, w)
	case strings.HasPrefix(up, "INSERT INTO "):
		return s.ProcessInsertCommand(t, w)
	case strings.HasPrefix(up, "APPEND INTO "):
		return s.ProcessAppendCommand(t, w)
	case strings.HasPrefix(up, "SELECT "):
		return s.ProcessSelectCommand(t, w)
	case strings.HasPrefix(up, "DELETE "):
		return s.ProcessDeleteCommand(t, w)
	case strings.HasPrefix(up, "UPDATE "):
		return s.ProcessUpdateCommand(t, w)
	case strings.HasPrefix(up, "DROP TABLES"):
		return s.ProcessDropTablesCommand(w)
	case strings.HasPrefix(up, "DROP TABLE "):
		return s.ProcessDropTableCommand(t, w)
	case strings.HasPrefix(up, "DESCRIBE TABLES"):
		return s.ProcessDescribeTablesCommand(w)
	case strings.HasPrefix(up, "DESCRIBE TABLE "):
		return s.ProcessDescribeTableCommand(t, w)
	default:
		return fmt.Errorf("unsupported command: %s", text)
	}
}

// ProcessCreateTableCommand expects: CREATE TABLE Name (col:TYPE[?], ...)
// A trailing "?" on a type marks the column nullable.
func (s *SGBD) ProcessCreateTableCommand(text string, w io.Writer) error {
	idx := strings.Index(text, "(")
	if idx < 0 {
		return fmt.Errorf("invalid CREATE TABLE syntax")
	}
	pre := strings.TrimSpace(text[:idx])
	parts := strings.Fields(pre)
	if len(parts) < 3 {
		return fmt.Errorf("invalid CREATE TABLE syntax")
	}
	name := parts[2]
	body := strings.TrimSpace(text[idx+1:])
	if strings.HasSuffix(body, ")") {
		body = body[:len(body)-1]
	}
	cols := strings.Split(body, ",")
	var attrs []relation.Attribute
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		sp := strings.SplitN(c, ":", 2)
		if len(sp) != 2 {
			return fmt.Errorf("invalid column definition: %s", c)
		}
		cname := strings.TrimSpace(sp[0])
		ctype := strings.TrimSpace(sp[1])
		nullable := false
		if strings.HasSuffix(ctype, "?") {
			nullable = true
			ctype = strings.TrimSuffix(ctype, "?")
		}
		dt, err := relation.ParseDataType(strings.ToUpper(strings.TrimSpace(ctype)))
		if err != nil {
			return err
		}
		attrs = append(attrs, relation.NewAttribute(cname, dt, nullable))
	}
	if _, err := s.dbm.CreateTable(name, relation.NewSchema(attrs)); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// ProcessInsertCommand expects: INSERT INTO Name VALUES (v1,v2,...)
func (s *SGBD) ProcessInsertCommand(text string, w io.Writer) error {
	up := strings.ToUpper(text)
	idx := strings.Index(up, " VALUES (")
	if idx < 0 {
		return fmt.Errorf("invalid INSERT syntax")
	}
	pre := strings.TrimSpace(text[:idx])
	parts := strings.Fields(pre)
	if len(parts) < 3 {
		return fmt.Errorf("invalid INSERT syntax")
	}
	name := parts[2]
	vstart := idx + len(" VALUES (")
	if !strings.HasSuffix(text, ")") {
		return fmt.Errorf("invalid INSERT syntax: missing )")
	}
	body := text[vstart : len(text)-1]

	rel, ok := s.dbm.GetTable(name)
	if !ok {
		return fmt.Errorf("unknown table: %s", name)
	}
	literals := splitCSVLine(body)
	values, err := literalsToValues(rel.Schema, literals)
	if err != nil {
		return err
	}
	if _, err := s.dbm.InsertValues(name, values); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

// ProcessAppendCommand expects: APPEND INTO Name ALLRECORDS(file.csv)
func (s *SGBD) ProcessAppendCommand(text string, w io.Writer) error {
	parts := strings.Fields(text)
	if len(parts) < 4 {
		return fmt.Errorf("invalid APPEND syntax")
	}
	name := parts[2]
	idx := strings.Index(text, "(")
	jdx := strings.LastIndex(text, ")")
	if idx < 0 || jdx < 0 || jdx <= idx {
		return fmt.Errorf("invalid APPEND syntax: missing parentheses")
	}
	fname := strings.TrimSpace(text[idx+1 : jdx])
	cnt, err := s.dbm.AppendFromCSV(name, fname)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "OK (%d inserted)\n", cnt)
	return nil
}

// condition represents a simple comparison between terms (col or constant).
type condition struct {
	leftIsCol   bool
	leftColIdx  int
	leftConst   string
	rightIsCol  bool
	rightColIdx int
	rightConst  string
	op          string
}

func splitCSVLine(line string) []string {
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		out = append(out, v)
	}
	return out
}

// literalsToValues parses one literal per schema attribute into its
// native Go representation, treating an empty literal as NULL for
// nullable attributes.
func literalsToValues(schema *relation.Schema, literals []string) ([]interface{}, error) {
	if len(literals) != len(schema.Attributes) {
		return nil, fmt.Errorf("expected %d values, got %d", len(schema.Attributes), len(literals))
	}
	values := make([]interface{}, len(literals))
	for i, a := range schema.Attributes {
		lit := literals[i]
		if lit == "" && a.Nullable {
			values[i] = nil
			continue
		}
		v, err := parseLiteral(a.DataType, lit)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", a.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

func parseLiteral(dt relation.DataType, lit string) (interface{}, error) {
	switch dt {
	case relation.Boolean:
		return strconv.ParseBool(lit)
	case relation.TinyInt:
		n, err := strconv.ParseInt(lit, 10, 8)
		return int8(n), err
	case relation.SmallInt:
		n, err := strconv.ParseInt(lit, 10, 16)
		return int16(n), err
	case relation.Int:
		n, err := strconv.ParseInt(lit, 10, 32)
		return int32(n), err
	case relation.BigInt:
		return strconv.ParseInt(lit, 10, 64)
	case relation.Decimal:
		n, err := strconv.ParseFloat(lit, 32)
		return float32(n), err
	case relation.Varchar:
		return lit, nil
	default:
		return nil, fmt.Errorf("unsupported data type %v", dt)
	}
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// parseWhereClause parses a conjunction of comparisons ("AND"-joined)
// into conditions referencing alias-qualified columns.
func parseWhereClause(where string, schema *relation.Schema, alias string) ([]condition, error) {
	var res []condition
	where = strings.TrimSpace(where)
	if where == "" {
		return res, nil
	}
	parts := strings.Split(where, " AND ")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		ops := []string{"<=", ">=", "<>", "=", "<", ">"}
		var found string
		var left, right string
		for _, op := range ops {
			if idx := strings.Index(p, op); idx >= 0 {
				found = op
				left = strings.TrimSpace(p[:idx])
				right = strings.TrimSpace(p[idx+len(op):])
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("unsupported condition: %s", p)
		}
		cond := condition{op: found}

		if strings.HasPrefix(left, alias+".") {
			idx, err := columnIndex(schema, left[len(alias)+1:])
			if err != nil {
				return nil, err
			}
			cond.leftIsCol = true
			cond.leftColIdx = idx
		} else {
			cond.leftConst = unquote(left)
		}
		if strings.HasPrefix(right, alias+".") {
			idx, err := columnIndex(schema, right[len(alias)+1:])
			if err != nil {
				return nil, err
			}
			cond.rightIsCol = true
			cond.rightColIdx = idx
		} else {
			cond.rightConst = unquote(right)
		}
		res = append(res, cond)
	}
	return res, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func columnIndex(schema *relation.Schema, name string) (int, error) {
	for i, a := range schema.Attributes {
		if a.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown column: %s", name)
}

// evalConditions evaluates conds against one decoded record's values.
func evalConditions(schema *relation.Schema, values []interface{}, conds []condition) (bool, error) {
	for _, c := range conds {
		var kind relation.DataType
		var leftLit, rightLit string
		if c.leftIsCol {
			kind = schema.Attributes[c.leftColIdx].DataType
			leftLit = formatValue(values[c.leftColIdx])
		} else {
			leftLit = c.leftConst
		}
		if c.rightIsCol {
			kind = schema.Attributes[c.rightColIdx].DataType
			rightLit = formatValue(values[c.rightColIdx])
		} else {
			rightLit = c.rightConst
		}
		if !c.leftIsCol && !c.rightIsCol {
			kind = relation.Varchar
		}

		cmp, err := compare(kind, leftLit, rightLit)
		if err != nil {
			return false, err
		}
		ok := false
		switch c.op {
		case "=":
			ok = cmp == 0
		case "<>":
			ok = cmp != 0
		case "<":
			ok = cmp < 0
		case ">":
			ok = cmp > 0
		case "<=":
			ok = cmp <= 0
		case ">=":
			ok = cmp >= 0
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(kind relation.DataType, left, right string) (int, error) {
	switch kind {
	case relation.Boolean, relation.TinyInt, relation.SmallInt, relation.Int, relation.BigInt:
		li, err := strconv.ParseInt(left, 10, 64)
		if err != nil {
			if left == "true" || left == "false" {
				li = 0
				if left == "true" {
					li = 1
				}
			} else {
				return 0, err
			}
		}
		ri, err := strconv.ParseInt(right, 10, 64)
		if err != nil {
			if right == "true" || right == "false" {
				ri = 0
				if right == "true" {
					ri = 1
				}
			} else {
				return 0, err
			}
		}
		switch {
		case li < ri:
			return -1, nil
		case li > ri:
			return 1, nil
		default:
			return 0, nil
		}
	case relation.Decimal:
		lf, err := strconv.ParseFloat(left, 64)
		if err != nil {
			return 0, err
		}
		rf, err := strconv.ParseFloat(right, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return strings.Compare(left, right), nil
	}
}

// ProcessSelectCommand expects: SELECT proj FROM name alias [WHERE ...]
func (s *SGBD) ProcessSelectCommand(text string, w io.Writer) error {
	up := strings.ToUpper(text)
	idx := strings.Index(up, " FROM ")
	if idx < 0 {
		return fmt.Errorf("invalid SELECT syntax")
	}
	selPart := strings.TrimSpace(text[len("SELECT "):idx])
	rest := strings.TrimSpace(text[idx+len(" FROM "):])
	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	var wherePart string
	fromPart := rest
	if whereIdx >= 0 {
		fromPart = strings.TrimSpace(rest[:whereIdx])
		wherePart = strings.TrimSpace(rest[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(fromPart)
	if len(parts) < 2 {
		return fmt.Errorf("invalid SELECT FROM syntax")
	}
	name := parts[0]
	alias := parts[1]
	rel, ok := s.dbm.GetTable(name)
	if !ok {
		return fmt.Errorf("unknown table: %s", name)
	}

	var projIdxs []int
	if strings.TrimSpace(selPart) == "*" {
		for i := range rel.Schema.Attributes {
			projIdxs = append(projIdxs, i)
		}
	} else {
		for _, c := range strings.Split(selPart, ",") {
			c = strings.TrimSpace(c)
			if !strings.HasPrefix(c, alias+".") {
				return fmt.Errorf("projection must use alias: %s", c)
			}
			i, err := columnIndex(rel.Schema, c[len(alias)+1:])
			if err != nil {
				return err
			}
			projIdxs = append(projIdxs, i)
		}
	}

	conds, err := parseWhereClause(wherePart, rel.Schema, alias)
	if err != nil {
		return err
	}

	total := 0
	err = s.dbm.ScanTable(name, func(_ relation.RecordID, values []interface{}) error {
		matched, err := evalConditions(rel.Schema, values, conds)
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		parts := make([]string, len(projIdxs))
		for i, pi := range projIdxs {
			parts[i] = formatValue(values[pi])
		}
		fmt.Fprintln(w, strings.Join(parts, " ; "))
		total++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total selected records = %d\n", total)
	return nil
}

// ProcessDeleteCommand expects: DELETE name alias [WHERE ...]
func (s *SGBD) ProcessDeleteCommand(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("DELETE "):])
	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	var wherePart string
	fromPart := rest
	if whereIdx >= 0 {
		fromPart = strings.TrimSpace(rest[:whereIdx])
		wherePart = strings.TrimSpace(rest[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(fromPart)
	if len(parts) < 2 {
		return fmt.Errorf("invalid DELETE syntax")
	}
	name := parts[0]
	alias := parts[1]
	rel, ok := s.dbm.GetTable(name)
	if !ok {
		return fmt.Errorf("unknown table: %s", name)
	}
	conds, err := parseWhereClause(wherePart, rel.Schema, alias)
	if err != nil {
		return err
	}
	match := func(values []interface{}) bool {
		ok, _ := evalConditions(rel.Schema, values, conds)
		return ok
	}
	cnt, err := s.dbm.DeleteWhere(name, match)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total deleted records = %d\n", cnt)
	return nil
}

// ProcessUpdateCommand expects: UPDATE name alias SET alias.col=val,... [WHERE ...]
func (s *SGBD) ProcessUpdateCommand(text string, w io.Writer) error {
	rest := strings.TrimSpace(text[len("UPDATE "):])
	upRest := strings.ToUpper(rest)
	setIdx := strings.Index(upRest, " SET ")
	if setIdx < 0 {
		return fmt.Errorf("invalid UPDATE syntax: missing SET")
	}
	before := strings.TrimSpace(rest[:setIdx])
	after := strings.TrimSpace(rest[setIdx+len(" SET "):])
	whereIdx := strings.Index(strings.ToUpper(after), " WHERE ")
	setPart := after
	wherePart := ""
	if whereIdx >= 0 {
		setPart = strings.TrimSpace(after[:whereIdx])
		wherePart = strings.TrimSpace(after[whereIdx+len(" WHERE "):])
	}
	parts := strings.Fields(before)
	if len(parts) < 2 {
		return fmt.Errorf("invalid UPDATE syntax")
	}
	name := parts[0]
	alias := parts[1]
	rel, ok := s.dbm.GetTable(name)
	if !ok {
		return fmt.Errorf("unknown table: %s", name)
	}

	changes := make(map[int]string)
	for _, a := range strings.Split(setPart, ",") {
		a = strings.TrimSpace(a)
		spIdx := strings.Index(a, "=")
		if spIdx < 0 {
			return fmt.Errorf("invalid SET assignment: %s", a)
		}
		lhs := strings.TrimSpace(a[:spIdx])
		rhs := strings.TrimSpace(a[spIdx+1:])
		if !strings.HasPrefix(lhs, alias+".") {
			return fmt.Errorf("left side must be alias.column: %s", lhs)
		}
		idx, err := columnIndex(rel.Schema, lhs[len(alias)+1:])
		if err != nil {
			return err
		}
		changes[idx] = unquote(rhs)
	}
	conds, err := parseWhereClause(wherePart, rel.Schema, alias)
	if err != nil {
		return err
	}
	match := func(values []interface{}) bool {
		ok, _ := evalConditions(rel.Schema, values, conds)
		return ok
	}
	updater := func(values []interface{}) []interface{} {
		out := append([]interface{}{}, values...)
		for idx, lit := range changes {
			v, err := parseLiteral(rel.Schema.Attributes[idx].DataType, lit)
			if err == nil {
				out[idx] = v
			}
		}
		return out
	}
	cnt, err := s.dbm.UpdateWhere(name, match, updater)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Total updated records = %d\n", cnt)
	return nil
}

func (s *SGBD) ProcessDropTableCommand(text string, w io.Writer) error {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return fmt.Errorf("invalid DROP TABLE syntax")
	}
	if err := s.dbm.DropTable(parts[2]); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (s *SGBD) ProcessDropTablesCommand(w io.Writer) error {
	if err := s.dbm.DropAllTables(); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (s *SGBD) ProcessDescribeTableCommand(text string, w io.Writer) error {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return fmt.Errorf("invalid DESCRIBE TABLE syntax")
	}
	name := parts[2]
	rel, ok := s.dbm.GetTable(name)
	if !ok {
		return fmt.Errorf("unknown table: %s", name)
	}
	fmt.Fprintln(w, describeRelation(rel.Name, rel.Schema))
	return nil
}

func (s *SGBD) ProcessDescribeTablesCommand(w io.Writer) error {
	for _, name := range s.dbm.TableNames() {
		rel, ok := s.dbm.GetTable(name)
		if !ok {
			continue
		}
		fmt.Fprintln(w, describeRelation(rel.Name, rel.Schema))
	}
	return nil
}

func describeRelation(name string, schema *relation.Schema) string {
	cols := make([]string, len(schema.Attributes))
	for i, a := range schema.Attributes {
		nullMark := ""
		if a.Nullable {
			nullMark = "?"
		}
		cols[i] = fmt.Sprintf("%s:%s%s", a.Name, a.DataType.String(), nullMark)
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(cols, ", "))
}
