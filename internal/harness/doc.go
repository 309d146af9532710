// Package harness runs query scenarios: YAML files listing textual queries
// and assertions on their results, executed against a fresh database.
//
// # Scenario Format
//
//	name: contacts_by_type
//	description: "Counting and listing contacts by type"
//	vars:
//	  code: Customer
//	steps:
//	  - name: customers
//	    query: Contact.Where(c => c.Type.Code == code).Count()
//	    assertions:
//	      - type: result_equals
//	        value: 4
//	  - name: single_fails
//	    query: Contact.Single()
//	    assertions:
//	      - type: error_code
//	        code: CARDINALITY
//
// Without schema and migrations keys, scenarios run on the Contact fixture
// database of package testutil.
//
// # Assertion Types
//
//   - result_equals: the normalized result equals value
//   - result_count: the result is a list of count elements
//   - result_contains: the result, or one of its elements, has fields
//   - error_code: the query failed with the given taxonomy code
//   - sql_contains: the statement for the scenario's dialect contains text
//
// # Golden Snapshots
//
// RunWithGolden compares each step's normalized value (or error code)
// against testdata/golden/<name>.golden via goldie. Regenerate with
// go test ./internal/harness -update.
package harness
