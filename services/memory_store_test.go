package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"moveflow_server/models"
	"moveflow_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memoryStore is an in-memory DocumentStore honoring the conditional-write
// semantics the services rely on, so races like concurrent get-or-create
// behave the same as against DynamoDB. It only evaluates the expression
// shapes the services actually produce: SET/REMOVE updates and AND-joined
// attribute_exists / attribute_not_exists / equality / inequality guards.
type memoryStore struct {
	mu        sync.Mutex
	tables    map[string]*memoryTable
	failures  map[string]error
	creations map[string]int
}

type memoryTable struct {
	keyAttrs []string
	indexes  map[string]string // index name -> partition attribute
	items    map[string]map[string]types.AttributeValue
}

func newMemoryStore() *memoryStore {
	ms := &memoryStore{
		tables:    map[string]*memoryTable{},
		failures:  map[string]error{},
		creations: map[string]int{},
	}
	ms.addTable(models.SessionsTable, []string{"sessionId"}, nil)
	ms.addTable(models.MessagesTable, []string{"sessionId", "createdAt"}, nil)
	ms.addTable(models.MovesTable, []string{"moveId"}, nil)
	ms.addTable(models.MatchRequestsTable, []string{"requestId"}, map[string]string{models.ToIDIndex: "toId"})
	ms.addTable(models.UserProfilesTable, []string{"userId"}, nil)
	return ms
}

func (ms *memoryStore) addTable(name string, keyAttrs []string, indexes map[string]string) {
	ms.tables[name] = &memoryTable{
		keyAttrs: keyAttrs,
		indexes:  indexes,
		items:    map[string]map[string]types.AttributeValue{},
	}
}

// failNext makes the next call of the given operation on the given table
// return err, once.
func (ms *memoryStore) failNext(op, table string, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failures[op+":"+table] = err
}

func (ms *memoryStore) takeFailure(op, table string) error {
	key := op + ":" + table
	if err, ok := ms.failures[key]; ok {
		delete(ms.failures, key)
		return err
	}
	return nil
}

// rawItem returns the stored attribute map for a single-attribute string
// key, or nil when absent. Lets tests assert what is durable without going
// through the services under test.
func (ms *memoryStore) rawItem(table, keyAttr, keyValue string) map[string]types.AttributeValue {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	tbl, ok := ms.tables[table]
	if !ok {
		return nil
	}
	item, ok := tbl.items[tbl.keyOf(map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberS{Value: keyValue},
	})]
	if !ok {
		return nil
	}
	return cloneItem(item)
}

// createdCount reports how many conditional creates succeeded on the table.
func (ms *memoryStore) createdCount(table string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.creations[table]
}

func (ms *memoryStore) table(name string) (*memoryTable, error) {
	tbl, ok := ms.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table '%s'", name)
	}
	return tbl, nil
}

func (tbl *memoryTable) keyOf(item map[string]types.AttributeValue) string {
	parts := make([]string, 0, len(tbl.keyAttrs))
	for _, attr := range tbl.keyAttrs {
		parts = append(parts, utils.ExtractString(item, attr))
	}
	return strings.Join(parts, "\x1f")
}

func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	clone := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		clone[k] = v
	}
	return clone
}

func (ms *memoryStore) GetItem(_ context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("GetItem", tableName); err != nil {
		return nil, err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return nil, err
	}

	item, ok := tbl.items[tbl.keyOf(key)]
	if !ok {
		return nil, nil
	}
	return cloneItem(item), nil
}

func (ms *memoryStore) PutItem(_ context.Context, tableName string, item interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("PutItem", tableName); err != nil {
		return err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return err
	}

	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	tbl.items[tbl.keyOf(marshaled)] = marshaled
	return nil
}

func (ms *memoryStore) PutItemIfAbsent(_ context.Context, tableName string, item interface{}, _ string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("PutItemIfAbsent", tableName); err != nil {
		return false, err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return false, err
	}

	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, err
	}

	key := tbl.keyOf(marshaled)
	if _, exists := tbl.items[key]; exists {
		return false, nil
	}
	tbl.items[key] = marshaled
	ms.creations[tableName]++
	return true, nil
}

func (ms *memoryStore) UpdateItem(
	_ context.Context,
	tableName string,
	updateExpression string,
	conditionExpression string,
	key map[string]types.AttributeValue,
	values map[string]types.AttributeValue,
	names map[string]string,
) (map[string]types.AttributeValue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("UpdateItem", tableName); err != nil {
		return nil, err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return nil, err
	}

	itemKey := tbl.keyOf(key)
	item := tbl.items[itemKey]

	if conditionExpression != "" && !evalCondition(item, conditionExpression, values, names) {
		return nil, ErrConditionFailed
	}
	if item == nil {
		item = cloneItem(key) // unconditional update on a missing item upserts
	}

	applyUpdateExpression(item, updateExpression, values, names)
	tbl.items[itemKey] = item
	return cloneItem(item), nil
}

func (ms *memoryStore) QueryItems(
	_ context.Context,
	tableName string,
	keyConditionExpression string,
	values map[string]types.AttributeValue,
	names map[string]string,
	limit int32,
	ascending bool,
) ([]map[string]types.AttributeValue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("QueryItems", tableName); err != nil {
		return nil, err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return nil, err
	}

	// Key conditions here are a partition equality, optionally narrowed by
	// a range comparison on the sort key ("#a = :a AND #b > :b").
	clauses := strings.Split(keyConditionExpression, " AND ")
	attr, want := parseEquality(clauses[0], values, names)

	var matches []map[string]types.AttributeValue
	for _, item := range tbl.items {
		if !attrEqual(item[attr], want) {
			continue
		}
		keep := true
		for _, clause := range clauses[1:] {
			parts := strings.SplitN(clause, ">", 2)
			rangeAttr := resolveName(strings.TrimSpace(parts[0]), names)
			bound, ok := values[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberS)
			if !ok || utils.ExtractString(item, rangeAttr) <= bound.Value {
				keep = false
				break
			}
		}
		if keep {
			matches = append(matches, cloneItem(item))
		}
	}

	if len(tbl.keyAttrs) > 1 {
		sortAttr := tbl.keyAttrs[1]
		sort.Slice(matches, func(i, j int) bool {
			less := utils.ExtractString(matches[i], sortAttr) < utils.ExtractString(matches[j], sortAttr)
			if ascending {
				return less
			}
			return !less
		})
	}

	if limit > 0 && int32(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// QueryItemsWithIndex mirrors the DynamoDB paging contract: limit bounds
// the items read before the filter runs, and a page that stops mid-partition
// returns a lastEvaluatedKey even when every read item was filtered out.
func (ms *memoryStore) QueryItemsWithIndex(
	_ context.Context,
	tableName string,
	indexName string,
	keyConditionExpression string,
	values map[string]types.AttributeValue,
	names map[string]string,
	filterExpression string,
	limit int32,
	exclusiveStartKey map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("QueryItemsWithIndex", tableName); err != nil {
		return nil, nil, err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := tbl.indexes[indexName]; !ok {
		return nil, nil, fmt.Errorf("unknown index '%s' on table '%s'", indexName, tableName)
	}

	attr, want := parseEquality(keyConditionExpression, values, names)

	var partition []map[string]types.AttributeValue
	for _, item := range tbl.items {
		if attrEqual(item[attr], want) {
			partition = append(partition, item)
		}
	}
	sort.Slice(partition, func(i, j int) bool {
		return tbl.keyOf(partition[i]) < tbl.keyOf(partition[j])
	})

	start := 0
	if exclusiveStartKey != nil {
		afterKey := tbl.keyOf(exclusiveStartKey)
		for start < len(partition) && tbl.keyOf(partition[start]) <= afterKey {
			start++
		}
	}

	end := len(partition)
	if limit > 0 && start+int(limit) < end {
		end = start + int(limit)
	}

	var matches []map[string]types.AttributeValue
	for _, item := range partition[start:end] {
		if filterExpression != "" && !evalCondition(item, filterExpression, values, names) {
			continue
		}
		matches = append(matches, cloneItem(item))
	}

	var lastKey map[string]types.AttributeValue
	if end < len(partition) {
		lastKey = map[string]types.AttributeValue{}
		for _, keyAttr := range tbl.keyAttrs {
			lastKey[keyAttr] = partition[end-1][keyAttr]
		}
	}
	return matches, lastKey, nil
}

func (ms *memoryStore) DeleteItem(_ context.Context, tableName string, key map[string]types.AttributeValue) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.takeFailure("DeleteItem", tableName); err != nil {
		return err
	}
	tbl, err := ms.table(tableName)
	if err != nil {
		return err
	}
	delete(tbl.items, tbl.keyOf(key))
	return nil
}

var _ DocumentStore = (*memoryStore)(nil)

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if attr, ok := names[token]; ok {
			return attr
		}
	}
	return token
}

func parseEquality(expression string, values map[string]types.AttributeValue, names map[string]string) (string, types.AttributeValue) {
	parts := strings.SplitN(expression, "=", 2)
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	return attr, values[strings.TrimSpace(parts[1])]
}

func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func evalCondition(item map[string]types.AttributeValue, expression string, values map[string]types.AttributeValue, names map[string]string) bool {
	for _, clause := range strings.Split(expression, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")")
			if item == nil {
				return false
			}
			if _, ok := item[resolveName(attr, names)]; !ok {
				return false
			}
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")")
			if item != nil {
				if _, ok := item[resolveName(attr, names)]; ok {
					return false
				}
			}
		case strings.Contains(clause, "<>"):
			parts := strings.SplitN(clause, "<>", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want := values[strings.TrimSpace(parts[1])]
			if item == nil {
				return false
			}
			current, ok := item[attr]
			if !ok || attrEqual(current, want) {
				return false
			}
		case strings.Contains(clause, "="):
			parts := strings.SplitN(clause, "=", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want := values[strings.TrimSpace(parts[1])]
			if item == nil {
				return false
			}
			current, ok := item[attr]
			if !ok || !attrEqual(current, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func applyUpdateExpression(item map[string]types.AttributeValue, expression string, values map[string]types.AttributeValue, names map[string]string) {
	setPart := expression
	removePart := ""
	if idx := strings.Index(expression, "REMOVE"); idx >= 0 {
		setPart = strings.TrimSpace(expression[:idx])
		removePart = strings.TrimSpace(strings.TrimPrefix(expression[idx:], "REMOVE"))
	}

	if strings.HasPrefix(setPart, "SET") {
		for _, assignment := range strings.Split(strings.TrimPrefix(setPart, "SET"), ",") {
			parts := strings.SplitN(assignment, "=", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			item[attr] = values[strings.TrimSpace(parts[1])]
		}
	}
	if removePart != "" {
		for _, field := range strings.Split(removePart, ",") {
			delete(item, resolveName(strings.TrimSpace(field), names))
		}
	}
}
