package forwarder

import (
	"fmt"
	"strings"
)

// MissingFunctionNameError is fatal: the eventual log group name of a
// dynamically named function cannot be determined before deployment. It is
// collected across all affected functions and reported once.
type MissingFunctionNameError struct {
	FunctionKeys []string
}

func (e *MissingFunctionNameError) Error() string {
	return fmt.Sprintf("cannot determine the log group name for function(s) %s before "+
		"deployment; set an explicit FunctionName on each, or provide the stackName "+
		"parameter so the macro can locate their log groups",
		strings.Join(e.FunctionKeys, ", "))
}

// MissingSubDeclarationError is fatal: the template declares a log group for
// this function but no subscription filter, and the macro cannot subscribe a
// log group that will not exist until the stack deploys.
type MissingSubDeclarationError struct {
	FunctionKey string
	LogGroupKey string
}

func (e *MissingSubDeclarationError) Error() string {
	return fmt.Sprintf("log group %s for function %s is declared in the template without "+
		"a subscription filter; remove the log group declaration so the macro can manage "+
		"both, or declare the subscription filter yourself", e.LogGroupKey, e.FunctionKey)
}
