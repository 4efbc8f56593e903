package relocator

// SetMoveFunc swaps the filesystem move used by r.
func SetMoveFunc(r *Relocator, move func(src, dst string) error) {
	r.move = move
}
