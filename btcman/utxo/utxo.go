package utxo

// Sum adds up the amounts in satoshi.
func Sum(inputs []*UTXO) int64 {
	var sum int64
	for _, item := range inputs {
		sum += item.Amount
	}
	return sum
}
