//go:build !race

package mockapi

func passwordHashCost() int {
	return 12
}
