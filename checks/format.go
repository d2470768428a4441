package checks

// CommonFormat checks that the ontology was loadable by the toolchain in a
// recognized serialization. The syntax value comes from the metrics artifact;
// an empty value means the toolchain could not determine the format.
func CommonFormat(syntax string) Result {
	if syntax == "" {
		return errorf("Unable to determine ontology format")
	}
	return pass()
}
