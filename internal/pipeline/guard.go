package pipeline

// AccessDecision — результат проверки прав. Вычисляется на каждый вызов
// и нигде не хранится.
type AccessDecision struct {
	Allowed            bool
	RequiredPermission string
}

// Authorize — чистая проверка членства: требуемое разрешение операции
// должно присутствовать в наборе вызывающего. Никаких комбинаций
// OR/AND — одна операция, одно разрешение.
func Authorize(callerPermissions map[string]bool, required string) AccessDecision {
	return AccessDecision{
		Allowed:            callerPermissions[required],
		RequiredPermission: required,
	}
}
