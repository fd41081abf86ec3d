package browser

// stealthScript is installed as an init script on the browser context so it
// runs before every page load and navigation. It strips the automation flag,
// pins navigator properties to plausible constants, perturbs fingerprint
// read-back APIs and tracks the last known pointer position for the
// interaction simulator. Installation is best-effort.
const stealthScript = `
// Remove the automation flag
delete navigator.webdriver;

// Plausible plugin list
Object.defineProperty(navigator, 'plugins', {
    get: () => [1, 2, 3, 4, 5].map(i => ({
        name: 'Plugin ' + i,
        description: 'Plugin Description ' + i,
        filename: 'plugin' + i + '.dll',
        length: 3
    }))
});

// Language preferences
Object.defineProperty(navigator, 'languages', {
    get: () => ['zh-CN', 'zh', 'en-US', 'en']
});

// Permissions query consistent with a real profile
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);

// chrome runtime shim
window.chrome = {
    runtime: {},
    loadTimes: function() { return {}; },
    csi: function() { return {}; },
    app: { isInstalled: false }
};

// Stable GPU identity
const getParameterProto = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function(parameter) {
    if (parameter === 37445) { // UNMASKED_VENDOR_WEBGL
        return 'Intel Inc.';
    }
    if (parameter === 37446) { // UNMASKED_RENDERER_WEBGL
        return 'Intel Iris OpenGL Engine';
    }
    return getParameterProto.call(this, parameter);
};

// Canvas read-back noise
const originalGetContext = HTMLCanvasElement.prototype.getContext;
HTMLCanvasElement.prototype.getContext = function(contextType, contextAttributes) {
    const context = originalGetContext.call(this, contextType, contextAttributes);
    if (contextType === '2d') {
        const originalFillText = context.fillText;
        context.fillText = function() {
            arguments[0] = arguments[0].toString();
            return originalFillText.apply(this, arguments);
        };

        const originalToDataURL = HTMLCanvasElement.prototype.toDataURL;
        HTMLCanvasElement.prototype.toDataURL = function() {
            const ctx = originalGetContext.call(this, '2d');
            ctx.fillStyle = '#FFFFFF01';
            ctx.fillRect(0, 0, 1, 1);
            return originalToDataURL.apply(this, arguments);
        };
    }
    return context;
};

// Track last known pointer position for trajectory synthesis
window.mouseX = 0;
window.mouseY = 0;
document.addEventListener('mousemove', function(e) {
    window.mouseX = e.clientX;
    window.mouseY = e.clientY;
});

let lastScrollTime = Date.now();
document.addEventListener('scroll', function() {
    lastScrollTime = Date.now();
});

document.addEventListener('keydown', function() {});

// Screen and hardware constants
Object.defineProperty(screen, 'colorDepth', { value: 24 });
Object.defineProperty(screen, 'pixelDepth', { value: 24 });
Object.defineProperty(navigator, 'hardwareConcurrency', { value: 8 });
Object.defineProperty(navigator, 'deviceMemory', { value: 8 });

// Battery API always reports a charged desktop
if (navigator.getBattery) {
    navigator.getBattery = function() {
        return Promise.resolve({
            charging: true,
            chargingTime: 0,
            dischargingTime: Infinity,
            level: 1.0,
            addEventListener: function() {}
        });
    };
}

// User agent client hints
if (navigator.userAgentData) {
    Object.defineProperty(navigator, 'userAgentData', {
        value: {
            brands: [
                {brand: 'Google Chrome', version: '119'},
                {brand: 'Chromium', version: '119'},
                {brand: 'Not=A?Brand', version: '24'}
            ],
            mobile: false,
            platform: 'Windows'
        }
    });
}

if (typeof chrome !== 'undefined' && chrome.runtime) {
    chrome.runtime.sendMessage = function() {
        return Promise.resolve({success: false});
    };
}

// AudioContext first-sample noise
const originalGetChannelData = AudioBuffer.prototype.getChannelData;
if (originalGetChannelData) {
    AudioBuffer.prototype.getChannelData = function(channel) {
        const array = originalGetChannelData.call(this, channel);
        if (array.length > 0) {
            array[0] = array[0] + 0.0000001;
        }
        return array;
    };
}
`
