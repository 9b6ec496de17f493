package scheduler

import "fmt"

func ExampleValidateExpression() {
	for _, expr := range []string{
		"*/10 * * * * *",
		"0 */5 * * * *",
		"@every 1m30s",
		"@hourly",
		"every tuesday",
	} {
		fmt.Printf("%-16q %v\n", expr, ValidateExpression(expr) == nil)
	}
	// Output:
	// "*/10 * * * * *" true
	// "0 */5 * * * *"  true
	// "@every 1m30s"   true
	// "@hourly"        true
	// "every tuesday"  false
}
