package project

// ListOpts pages project listings. Owner filtering is a separate argument
// of the store's ListProjects.
type ListOpts struct {
	Limit  int
	Offset int
}
